// Package storage provides a minimal persistence layer used by the bot.
//
// It currently supports:
//   - Audit log appends (subscription mutations)
//   - Expiring marks: notifier dedup state and seen-event keys, so both
//     survive restarts
//
// Subscriptions themselves are memory-resident only.
package storage
