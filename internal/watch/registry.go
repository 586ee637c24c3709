package watch

import (
	"sort"
	"strings"
)

// subscription is one user's record: watched domains plus preferences.
// An empty domain set is a valid, inert state; records are never deleted.
type subscription struct {
	domains map[string]struct{}
	prefs   AlertPreferences
}

// registry holds the user records and the inverse domain index.
//
// Invariants (maintained by every mutation):
//   - userID appears in watchers[domain] iff domain appears in
//     users[userID].domains
//   - watchers has an entry for a domain iff at least one user watches it
//     (no dangling empty sets)
//
// Not self-locking: the owning Engine serializes access.
type registry struct {
	users    map[int64]*subscription
	watchers map[string]map[int64]struct{}
}

func newRegistry() *registry {
	return &registry{
		users:    map[int64]*subscription{},
		watchers: map[string]map[int64]struct{}{},
	}
}

// normalizeDomain case-normalizes a domain name. Validation proper is the
// chat layer's job.
func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// ensureUser returns the user's record, creating it lazily with defaults.
func (r *registry) ensureUser(userID int64) *subscription {
	sub := r.users[userID]
	if sub == nil {
		sub = &subscription{
			domains: map[string]struct{}{},
			prefs:   DefaultPreferences(),
		}
		r.users[userID] = sub
	}
	return sub
}

// addDomain links user and domain both ways. Idempotent.
func (r *registry) addDomain(userID int64, domain string) {
	sub := r.ensureUser(userID)
	sub.domains[domain] = struct{}{}
	set := r.watchers[domain]
	if set == nil {
		set = map[int64]struct{}{}
		r.watchers[domain] = set
	}
	set[userID] = struct{}{}
}

// removeDomain unlinks user and domain, dropping the watcher set entirely
// when the last watcher leaves.
func (r *registry) removeDomain(userID int64, domain string) {
	if sub := r.users[userID]; sub != nil {
		delete(sub.domains, domain)
	}
	if set := r.watchers[domain]; set != nil {
		delete(set, userID)
		if len(set) == 0 {
			delete(r.watchers, domain)
		}
	}
}

// watcherList returns the current watchers of a domain.
func (r *registry) watcherList(domain string) []int64 {
	set := r.watchers[domain]
	if len(set) == 0 {
		return nil
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// watcherPrefs returns each current watcher of a domain with a copy of
// their preferences.
func (r *registry) watcherPrefs(domain string) map[int64]AlertPreferences {
	set := r.watchers[domain]
	if len(set) == 0 {
		return nil
	}
	out := make(map[int64]AlertPreferences, len(set))
	for id := range set {
		if sub := r.users[id]; sub != nil {
			out[id] = sub.prefs
		}
	}
	return out
}

// domainList returns all currently-watched domains.
func (r *registry) domainList() []string {
	out := make([]string, 0, len(r.watchers))
	for d := range r.watchers {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// userDomains returns a sorted snapshot of one user's watched domains.
func (r *registry) userDomains(userID int64) []string {
	sub := r.users[userID]
	if sub == nil || len(sub.domains) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(sub.domains))
	for d := range sub.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
