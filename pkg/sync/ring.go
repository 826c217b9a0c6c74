package sync

import (
	"encoding/binary"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring. Each member is placed at replicas points on
// the ring, and a key maps to the first member at or after its hash.
type ring[T any] struct {
	points *treemap.Map

	// Cached since treemap.Map.Min is O(log n), and it's the wraparound
	// target for every key hashing past the last point.
	first T
}

func newRing[T any](members map[string]T, replicas uint) *ring[T] {
	points := treemap.NewWith(utils.Int64Comparator)
	for name, member := range members {
		nameHash, _ := murmur3.Sum128([]byte(name))

		point := make([]byte, 12)
		binary.LittleEndian.PutUint64(point, nameHash)
		for i := uint32(0); i < uint32(replicas); i++ {
			binary.LittleEndian.PutUint32(point[8:], i)
			points.Put(hash(point), member)
		}
	}

	r := &ring[T]{points: points}
	if _, first := points.Min(); first != nil {
		r.first = first.(T)
	}
	return r
}

func (r *ring[T]) get(key []byte) T {
	if _, member := r.points.Ceiling(hash(key)); member != nil {
		return member.(T)
	}
	return r.first
}

func hash(data []byte) int64 {
	h, _ := murmur3.Sum128(data)
	return int64(h)
}
