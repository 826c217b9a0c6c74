package sync

import (
	"fmt"
	base "sync"
)

const replicasPerStripe = 200

// StripedLock maps an unbounded key space onto a fixed set of locks. Keys
// sharing a stripe contend, but memory stays constant.
type StripedLock struct {
	locks []base.RWMutex
	ring  *ring[int]
}

func NewStripedLock(stripes uint) *StripedLock {
	members := make(map[string]int, stripes)
	for i := 0; i < int(stripes); i++ {
		members[fmt.Sprintf("stripe%d", i)] = i
	}

	return &StripedLock{
		locks: make([]base.RWMutex, stripes),
		ring:  newRing(members, replicasPerStripe),
	}
}

// Get returns the lock for key. The same key always maps to the same lock.
func (l *StripedLock) Get(key []byte) *base.RWMutex {
	return &l.locks[l.ring.get(key)]
}
