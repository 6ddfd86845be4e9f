package service

import "sync"

// FacultyLocks serializes check-then-write sequences per faculty identity.
// Creating an activity, approving a meeting, rescheduling a session and
// materializing a semester all hold the owning faculty's lock across the
// conflict check and the store write, so two overlapping bookings cannot
// both pass the check. Reads never take the lock.
type FacultyLocks struct {
	locks sync.Map
}

// NewFacultyLocks constructs the lock registry.
func NewFacultyLocks() *FacultyLocks {
	return &FacultyLocks{}
}

// Lock acquires the advisory lock for a faculty and returns its release
// function.
func (f *FacultyLocks) Lock(facultyID string) func() {
	v, _ := f.locks.LoadOrStore(facultyID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
