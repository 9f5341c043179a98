package move

import "fmt"

// Queue is a fixed-capacity power-of-two ring buffer of Move records. Moves
// live inside the buffer; Reserve hands back a pointer into a not-yet-
// committed slot, and Commit is what actually advances Size. Capacity must
// be a power of two so indexing can use a bitmask, mirroring move_queue.
type Queue struct {
	moves []Move
	mask  uint32
	first uint32
	size  uint32
}

func isNonZeroPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

// NewQueue allocates a queue with the given power-of-two capacity.
func NewQueue(capacity uint32) (*Queue, error) {
	if !isNonZeroPowerOfTwo(capacity) {
		return nil, fmt.Errorf("move queue size must be a power of two, got %d", capacity)
	}
	q := &Queue{
		moves: make([]Move, capacity),
		mask:  capacity - 1,
	}
	q.Reset()
	return q, nil
}

// Reset empties the queue without releasing the backing array.
func (q *Queue) Reset() {
	q.size = 0
	q.first = 0
}

// Size returns the number of committed moves currently queued.
func (q *Queue) Size() int { return int(q.size) }

// Capacity returns the queue's fixed power-of-two capacity.
func (q *Queue) Capacity() int { return len(q.moves) }

// At returns the i'th committed move (0 is the oldest).
func (q *Queue) At(i int) *Move {
	idx := (q.first + uint32(i)) & q.mask
	return &q.moves[idx]
}

// Reserve returns a pointer to the next free slot and initializes it, but
// does not make it visible to At/Size until Commit is called. This mirrors
// the reserve/commit split that keeps planned-but-uncommitted moves from
// advancing size.
func (q *Queue) Reserve(startPos, endPos [4]float64, speed, accel, accelToDecel, jerk float64) (*Move, error) {
	if q.size == uint32(len(q.moves)) {
		return nil, fmt.Errorf("move queue full")
	}
	idx := (q.first + q.size) & q.mask
	m := &q.moves[idx]
	m.Init(startPos, endPos, speed, accel, accelToDecel, jerk)
	return m, nil
}

// Commit makes the most recently reserved move visible.
func (q *Queue) Commit() {
	q.size++
}

// Flush drops count moves from the front of the queue (they have been
// planned and handed to the segment queue).
func (q *Queue) Flush(count int) {
	q.first += uint32(count)
	q.size -= uint32(count)
}
