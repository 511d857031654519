package correlation

import "sync"

// Record is the correlation state for the last observed command.
type Record struct {
	PendingID   uint64
	Destination uint64
	Origin      uint64
}

// Slot holds one Record under a mutex. The zero value is ready to use.
//
// Thread Safety: All methods are safe for concurrent use. The lock is held
// only for the copy or comparison, never across I/O.
type Slot struct {
	mu  sync.Mutex
	rec Record
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Observe applies the fields present in a command. Absent fields keep their
// previous value.
func (s *Slot) Observe(f Fields) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID != nil {
		s.rec.PendingID = *f.ID
	}
	if f.To != nil {
		s.rec.Destination = *f.To
	}
	if f.From != nil {
		s.rec.Origin = *f.From
	}
	return s.rec
}

// Matches reports whether id equals the pending command id.
func (s *Slot) Matches(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.PendingID == id
}

// Snapshot returns a copy of the current record.
func (s *Slot) Snapshot() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}
