package service

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// UserLocks serializes mutations per user id so the read-modify-write
// cycle on a cart cannot interleave with another request for the same
// user in this process. Cart and checkout services share one instance.
type UserLocks struct {
	mus [lockStripes]sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{}
}

// Lock acquires the stripe for the user and returns its unlock func.
func (l *UserLocks) Lock(userID string) func() {
	h := fnv.New32a()
	h.Write([]byte(userID))
	mu := &l.mus[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
