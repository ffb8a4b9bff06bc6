package responsibility

import "sync"

// List accumulates responsibilities per identity. Identities keep the order in
// which they were first added.
type List struct {
	mu      sync.RWMutex
	order   []string
	entries map[string][]Responsibility
	size    int
}

// NewList creates an empty list.
func NewList() *List {
	return &List{entries: make(map[string][]Responsibility)}
}

// Add appends the responsibility to the identity's group.
func (l *List) Add(r Responsible) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[r.ID]; !ok {
		l.order = append(l.order, r.ID)
	}
	l.entries[r.ID] = append(l.entries[r.ID], r.Responsibility)
	l.size++
}

// Len returns the number of responsibilities across all identities.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Identities returns the identities in first-seen order.
func (l *List) Identities() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.order...)
}

// Responsibilities returns a copy of the identity's responsibilities.
func (l *List) Responsibilities(id string) []Responsibility {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Responsibility(nil), l.entries[id]...)
}

// Lookup returns the responsible recorded for the contract.
func (l *List) Lookup(contractID string) (Responsible, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, id := range l.order {
		for _, r := range l.entries[id] {
			if r.ContractID == contractID {
				return Responsible{ID: id, Responsibility: r}, true
			}
		}
	}
	return Responsible{}, false
}

// Groups returns one group per identity in first-seen order.
func (l *List) Groups() []Group {
	l.mu.RLock()
	defer l.mu.RUnlock()

	groups := make([]Group, 0, len(l.order))
	for _, id := range l.order {
		groups = append(groups, Group{
			Recipient:        id,
			Responsibilities: append([]Responsibility(nil), l.entries[id]...),
		})
	}
	return groups
}

// Group is every responsibility accumulated by one identity.
type Group struct {
	Recipient        string
	Responsibilities []Responsibility
}

// ContractIDs returns the contract ids of the group in insertion order.
func (g Group) ContractIDs() []string {
	ids := make([]string, len(g.Responsibilities))
	for i, r := range g.Responsibilities {
		ids[i] = r.ContractID
	}
	return ids
}

// Batch is the set of contracts one identity receives for a single reason.
type Batch struct {
	Recipient   string
	Reason      Reason
	ContractIDs []string
}

// ByReason splits the group by reason, ordered by each reason's first occurrence.
func (g Group) ByReason() []Batch {
	var batches []Batch
	index := make(map[Reason]int)
	for _, r := range g.Responsibilities {
		i, ok := index[r.Reason]
		if !ok {
			i = len(batches)
			index[r.Reason] = i
			batches = append(batches, Batch{Recipient: g.Recipient, Reason: r.Reason})
		}
		batches[i].ContractIDs = append(batches[i].ContractIDs, r.ContractID)
	}
	return batches
}
