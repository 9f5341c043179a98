package stepcompress

import (
	"container/heap"
	"math"
)

// clockHeap is a min-heap of future move-queue slot availabilities.
// stepcompress.c hand-rolls this as heap_replace; container/heap is the
// direct idiomatic substitute (no third-party heap library appears
// anywhere in the example pack).
type clockHeap []uint64

func (h clockHeap) Len() int            { return len(h) }
func (h clockHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h clockHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *clockHeap) Push(x interface{}) { *h = append(*h, x.(uint64)) }
func (h *clockHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// Steppersync merges the flushed command streams of a set of steppers into
// a single time-ordered batch, scheduling each message against a bounded
// pool of MCU move-queue slots. Mirrors struct steppersync.
type Steppersync struct {
	compressors []*Compressor
	moveClocks  clockHeap
}

// NewSteppersync builds a synchronizer over compressors with a move-queue
// pool of moveNum slots, all initially available at clock 0.
func NewSteppersync(compressors []*Compressor, moveNum int) *Steppersync {
	mc := make(clockHeap, moveNum)
	heap.Init(&mc)
	return &Steppersync{compressors: compressors, moveClocks: mc}
}

// SetTime propagates a new clock offset/frequency to every stepper.
func (s *Steppersync) SetTime(timeOffset, mcuFreq float64) {
	for _, c := range s.compressors {
		c.SetTime(timeOffset, mcuFreq)
	}
}

// Flush flushes every stepper up to moveClock, then merges their pending
// messages in ascending req_clock order into a single batch, mirroring
// steppersync_flush (the actual wire send is left to the caller, since
// transport is out of scope here).
func (s *Steppersync) Flush(moveClock uint64) ([]Message, error) {
	for _, c := range s.compressors {
		if err := c.Flush(moveClock); err != nil {
			return nil, err
		}
	}

	var batch []Message
	for {
		bestIdx := -1
		bestClock := uint64(math.MaxUint64)
		for i, c := range s.compressors {
			if len(c.msgQueue) == 0 {
				continue
			}
			if c.msgQueue[0].ReqClock < bestClock {
				bestClock = c.msgQueue[0].ReqClock
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}

		msg := s.compressors[bestIdx].msgQueue[0]

		// Only queue_step/queue_steps messages consume a move-queue slot
		// (stepcompress.c's queue_append*/queue_append_slow* stamp
		// min_clock = req_clock = last_step_clock; set_next_step_dir and
		// queue_msg leave it 0). Gate both the move_clock cutoff and the
		// heap update on that marker so direction-change and out-of-band
		// messages pass through untouched, mirroring steppersync_flush's
		// `if (qm->min_clock)` check.
		if msg.MinClock != 0 {
			if msg.ReqClock > moveClock {
				break
			}
			if len(s.moveClocks) > 0 {
				nextAvail := s.moveClocks[0]
				s.moveClocks[0] = msg.ReqClock
				heap.Fix(&s.moveClocks, 0)
				msg.MinClock = nextAvail
			}
		}

		batch = append(batch, msg)
		s.compressors[bestIdx].msgQueue = s.compressors[bestIdx].msgQueue[1:]
	}
	return batch, nil
}
