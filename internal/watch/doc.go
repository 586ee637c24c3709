// Package watch is the subscription and periodic-reporting engine.
//
// It keeps an in-memory registry mapping users to watched domains and
// per-user alert preferences, runs a single recurring event-detection loop
// over all watched domains, and runs one recurring report timer per user.
// Detected events and assembled reports are handed to a Notifier
// collaborator; domain state comes from an EventProvider collaborator.
//
// The registry does not survive process restarts.
package watch
