package stepcompress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteppersyncOrdersMessagesByRequestClock(t *testing.T) {
	a := NewCompressor(0)
	a.Fill(1, false, 1, 2, 3)
	a.SetTime(0, 1)
	b := NewCompressor(1)
	b.Fill(1, false, 1, 2, 3)
	b.SetTime(0, 1)

	require.NoError(t, a.Append(1, 0, 0.005))
	require.NoError(t, b.Append(1, 0, 0.001))

	sync := NewSteppersync([]*Compressor{a, b}, 4)
	batch, err := sync.Flush(math.MaxUint64)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(batch), 2, "expected messages from both steppers")

	for i := 1; i < len(batch); i++ {
		assert.GreaterOrEqual(t, batch[i].ReqClock, batch[i-1].ReqClock, "batch must be ordered by req_clock at index %d", i)
	}
}

// TestSteppersyncSlotTrackingIgnoresNonSlotMessages mirrors
// steppersync_flush's `if (qm->min_clock)` gate: only queue_step/
// queue_steps messages consume a move-queue slot, so a set_next_step_dir or
// queue_msg message sitting between two such messages must neither advance
// the heap-tracked slot availability nor have its own MinClock touched.
func TestSteppersyncSlotTrackingIgnoresNonSlotMessages(t *testing.T) {
	c := NewCompressor(0)
	c.Fill(1, false, 1, 2, 3)
	c.SetTime(0, 1)

	// Built directly on the message queue (as other stepcompress tests poke
	// at c.msgQueue/c.pos/c.sdir) so the req_clock/min_clock values are
	// exact and unambiguous, rather than relying on coincidental clocks
	// produced by chained Append/Flush calls.
	c.msgQueue = []Message{
		{ReqClock: 100, Data: []byte("dir-change-a")},          // set_next_step_dir: no slot
		{ReqClock: 100, MinClock: 100, Data: []byte("step-a")}, // queue_step/queue_steps: uses a slot
		{ReqClock: 500, Data: []byte("out-of-band")},           // queue_msg: no slot, large req_clock
		{ReqClock: 600, MinClock: 600, Data: []byte("step-b")}, // queue_step/queue_steps: uses a slot
	}
	c.lastStepClock = 600

	sync := NewSteppersync([]*Compressor{c}, 1)
	batch, err := sync.Flush(math.MaxUint64)
	require.NoError(t, err)
	require.Len(t, batch, 4)

	assert.Equal(t, uint64(0), batch[0].MinClock, "set_next_step_dir message must not carry a slot marker")
	assert.Equal(t, uint64(0), batch[2].MinClock, "out-of-band queue_msg message must not carry a slot marker")

	// The first slot-consuming message sees the heap's untouched initial
	// availability (0). The second must see the first slot message's own
	// req_clock (100) as the slot's newly freed clock, not the intervening
	// out-of-band message's req_clock (500) - proving the heap only
	// advances on genuine move-consuming commands.
	assert.Equal(t, uint64(0), batch[1].MinClock, "first slot message should see the initial slot availability")
	assert.Equal(t, uint64(100), batch[3].MinClock, "second slot message should see the first slot message's req_clock, not the intervening out-of-band message's")
}
