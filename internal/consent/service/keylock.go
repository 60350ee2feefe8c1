package service

import "sync"

// Operations on one (principal, fiduciary) pair read-then-write the active
// artifact and must be serialized. A single global lock would throttle
// unrelated pairs, so locks are distributed across shards keyed by an
// FNV-1a hash of the pair.
const numShards = 128

type keyLock struct {
	shards [numShards]sync.Mutex
}

func (l *keyLock) lockFor(principalID, fiduciaryID string) *sync.Mutex {
	return &l.shards[hashPair(principalID, fiduciaryID)%numShards]
}

func hashPair(principalID, fiduciaryID string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(principalID); i++ {
		h ^= uint32(principalID[i])
		h *= fnvPrime
	}
	h ^= uint32('|')
	h *= fnvPrime
	for i := 0; i < len(fiduciaryID); i++ {
		h ^= uint32(fiduciaryID[i])
		h *= fnvPrime
	}
	return h
}
