// Package idgen produces the identifiers handed to asset records and parent
// entities: 64-bit, time-ordered, unique across asset nodes without any
// coordination on the hot path.
package idgen

import (
	"errors"
	"sync"
)

// ID layout, high to low:
//
//	1 bit   sign, always zero
//	41 bits milliseconds since epoch
//	10 bits node id
//	12 bits per-millisecond sequence
//
// Time in the high bits keeps IDs sortable by creation order.
const (
	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = -1 ^ (-1 << nodeBits)
	maxSequence = -1 ^ (-1 << sequenceBits)

	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits

	// Epoch is 2025-01-01 00:00:00 UTC. 41 timestamp bits reach into the 2090s.
	Epoch = 1735689600000
)

var (
	ErrNodeIDTooLarge = errors.New("idgen: node id exceeds 10 bits")
	ErrClockMovedBack = errors.New("idgen: clock moved backwards")
)

// Snowflake hands out IDs for one node. Safe for concurrent use.
type Snowflake struct {
	mu       sync.Mutex
	clock    Clock
	nodeID   int64
	lastTime int64
	sequence int64
}

// New creates a generator for the given node. A nil clock selects the local
// system clock.
func New(nodeID int64, clock Clock) (*Snowflake, error) {
	if nodeID < 0 || nodeID > int64(maxNodeID) {
		return nil, ErrNodeIDTooLarge
	}
	if clock == nil {
		clock = &SystemClock{}
	}
	return &Snowflake{clock: clock, nodeID: nodeID, lastTime: -1}, nil
}

// Next returns the next ID. When the 12-bit sequence fills up within one
// millisecond it spins until the clock advances; a clock that runs backwards
// is an error rather than a source of duplicate IDs.
func (s *Snowflake) Next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if now < s.lastTime {
		return 0, ErrClockMovedBack
	}

	if now == s.lastTime {
		s.sequence = (s.sequence + 1) & int64(maxSequence)
		if s.sequence == 0 {
			for now <= s.lastTime {
				now = s.clock.Now()
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastTime = now

	return ((now - Epoch) << timestampShift) | (s.nodeID << nodeShift) | s.sequence, nil
}
