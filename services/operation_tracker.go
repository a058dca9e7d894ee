package services

import (
	"sort"
	"sync"
)

// OperationSnapshot is a point-in-time copy of the in-flight flags
type OperationSnapshot struct {
	FetchInFlight  bool    `json:"fetch_in_flight"`
	CreateInFlight bool    `json:"create_in_flight"`
	Updating       []int64 `json:"updating"`
	Deleting       []int64 `json:"deleting"`
}

// OperationTracker records which operations are outstanding so callers can
// disable only the affected controls. Families are independent: a fetch,
// a create and any number of updates/deletes on distinct rounds may run at
// once, but the same create/update/delete target is single-flight.
type OperationTracker struct {
	mutex      sync.Mutex
	fetchCount int
	creating   bool
	updating   map[int64]struct{}
	deleting   map[int64]struct{}
}

// NewOperationTracker creates an idle tracker
func NewOperationTracker() *OperationTracker {
	return &OperationTracker{
		updating: make(map[int64]struct{}),
		deleting: make(map[int64]struct{}),
	}
}

// BeginFetch marks a page fetch outstanding. Fetches overlap freely; the
// returned func must be called exactly once when the fetch settles.
func (t *OperationTracker) BeginFetch() func() {
	t.mutex.Lock()
	t.fetchCount++
	t.mutex.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mutex.Lock()
			t.fetchCount--
			t.mutex.Unlock()
		})
	}
}

// FetchInFlight reports whether any page fetch is outstanding
func (t *OperationTracker) FetchInFlight() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.fetchCount > 0
}

// TryBeginCreate claims the create slot. It returns false if a create is
// already outstanding.
func (t *OperationTracker) TryBeginCreate() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.creating {
		return false
	}
	t.creating = true
	return true
}

// EndCreate releases the create slot
func (t *OperationTracker) EndCreate() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.creating = false
}

// CreateInFlight reports whether a create is outstanding
func (t *OperationTracker) CreateInFlight() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.creating
}

// TryBeginUpdate claims the update slot of one round
func (t *OperationTracker) TryBeginUpdate(roundID int64) bool {
	return t.claim(t.updating, roundID)
}

// EndUpdate releases the update slot of one round
func (t *OperationTracker) EndUpdate(roundID int64) {
	t.release(t.updating, roundID)
}

// IsUpdating reports whether a save of roundID is outstanding
func (t *OperationTracker) IsUpdating(roundID int64) bool {
	return t.contains(t.updating, roundID)
}

// TryBeginDelete adds roundID to the deleting set. It returns false if that
// round is already being deleted.
func (t *OperationTracker) TryBeginDelete(roundID int64) bool {
	return t.claim(t.deleting, roundID)
}

// EndDelete removes roundID from the deleting set
func (t *OperationTracker) EndDelete(roundID int64) {
	t.release(t.deleting, roundID)
}

// IsDeleting reports whether roundID is in the deleting set
func (t *OperationTracker) IsDeleting(roundID int64) bool {
	return t.contains(t.deleting, roundID)
}

// Snapshot copies the current flags
func (t *OperationTracker) Snapshot() OperationSnapshot {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return OperationSnapshot{
		FetchInFlight:  t.fetchCount > 0,
		CreateInFlight: t.creating,
		Updating:       sortedIDs(t.updating),
		Deleting:       sortedIDs(t.deleting),
	}
}

func (t *OperationTracker) claim(set map[int64]struct{}, roundID int64) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if _, busy := set[roundID]; busy {
		return false
	}
	set[roundID] = struct{}{}
	return true
}

func (t *OperationTracker) release(set map[int64]struct{}, roundID int64) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	delete(set, roundID)
}

func (t *OperationTracker) contains(set map[int64]struct{}, roundID int64) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	_, ok := set[roundID]
	return ok
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
