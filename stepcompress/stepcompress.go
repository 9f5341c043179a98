// Package stepcompress fits queued stepper pulse clocks to fixed-point
// quadratic polynomials so a handful of MCU queue_step/queue_steps commands
// can reproduce thousands of individual step clocks. Mirrors stepcompress.c
// (the active generate_move/validate_move/find_move path; the file's
// #if 0-guarded compress_bisect_add block is dead code and was not ported).
package stepcompress

import (
	"fmt"
	"math"
)

// clockDiffMax bounds how far a single step clock may lead the last
// flushed clock before it is treated as "far future" and forces an
// intermediate flush, mirroring stepcompress.c's CLOCK_DIFF_MAX.
const clockDiffMax = 3 << 28

// queueStartSize is the initial queue capacity, mirroring
// stepcompress.c's QUEUE_START_SIZE.
const queueStartSize = 1024

// golden-section search constants used by validateMove's interior-error
// check, mirroring stepcompress.c's invphi/invphi2.
var (
	invphi  = (math.Sqrt(5) - 1) / 2
	invphi2 = (3 - math.Sqrt(5)) / 2
)

type queueStep struct {
	clock    uint64
	invSpeed uint32
}

// Message is one encoded MCU command, ordered by the clock at which its
// queue slot becomes available for reuse (reqClock) and, if it consumes a
// steppersync move-queue slot, the clock at which that slot frees
// (minClock > 0).
type Message struct {
	ReqClock uint64
	MinClock uint64
	Data     []byte
}

type stepMove struct {
	add1, add2 int32
	count      uint16
	endTime    uint64
	endSpeed   uint32
}

// Compressor accumulates a single stepper's absolute step clocks and
// compresses them into MCU commands on Flush. Mirrors struct stepcompress.
type Compressor struct {
	oid uint32

	queueStepMsgID, queueStepsMsgID, setNextStepDirMsgID uint32
	invertSdir                                           bool
	maxError                                             uint32

	queue []queueStep
	pos   int

	lastStepClock uint64
	lastStepSpeed uint32
	sdir          int // -1 == unset, 0 or 1 otherwise

	mcuTimeOffset, mcuFreq float64

	msgQueue []Message
}

// NewCompressor allocates a compressor for the stepper identified by oid.
func NewCompressor(oid uint32) *Compressor {
	return &Compressor{
		oid:  oid,
		sdir: -1,
		queue: make([]queueStep, 0, queueStartSize),
	}
}

// Fill configures the wire-protocol command IDs and step-fitting tolerance,
// mirroring stepcompress_fill.
func (c *Compressor) Fill(maxError uint32, invertSdir bool, queueStepMsgID, queueStepsMsgID, setNextStepDirMsgID uint32) {
	c.maxError = maxError
	c.invertSdir = invertSdir
	c.queueStepMsgID = queueStepMsgID
	c.queueStepsMsgID = queueStepsMsgID
	c.setNextStepDirMsgID = setNextStepDirMsgID
}

// SetTime records the offset (seconds) and frequency (Hz) used to convert
// absolute print times into MCU clock ticks, mirroring stepcompress_set_time.
func (c *Compressor) SetTime(timeOffset, mcuFreq float64) {
	c.mcuTimeOffset = timeOffset
	c.mcuFreq = mcuFreq
}

// GetStepDir returns the last direction sent to the MCU (-1 if none yet),
// mirroring stepcompress_get_step_dir.
func (c *Compressor) GetStepDir() int {
	return c.sdir
}

// Append records one step in direction sdir (0 or 1) at absolute time
// printTime+relTime, mirroring stepcompress_append. A direction change
// flushes the pending queue and emits set_next_step_dir before the new step
// is recorded.
func (c *Compressor) Append(sdir int, printTime, relTime float64) error {
	if sdir != 0 && sdir != 1 {
		return fmt.Errorf("stepcompress: sdir must be 0 or 1, got %d", sdir)
	}
	if err := c.setNextStepDir(sdir); err != nil {
		return err
	}
	absTime := printTime + relTime
	clock := uint64(math.Round((absTime - c.mcuTimeOffset) * c.mcuFreq))
	return c.appendClock(clock)
}

// Commit is a no-op in this port: unlike the teacher's cursor-based
// queue_append_start/finish, Append writes directly into the queue, so
// there is nothing to roll back. Kept so itersolve's "avoid rollback when
// the stepper reaches its target" call site has somewhere to call.
func (c *Compressor) Commit() {}

func (c *Compressor) setNextStepDir(sdir int) error {
	if c.sdir == sdir {
		return nil
	}
	if err := c.Flush(math.MaxUint64); err != nil {
		return err
	}
	c.sdir = sdir
	dir := sdir
	if c.invertSdir {
		dir ^= 1
	}
	c.msgQueue = append(c.msgQueue, Message{
		ReqClock: c.lastStepClock,
		Data:     encodeMessage(c.setNextStepDirMsgID, c.oid, int32(dir)),
	})
	return nil
}

func (c *Compressor) appendClock(clock uint64) error {
	if len(c.queue) > 0 && c.lastStepClock != 0 && clock >= c.lastStepClock+clockDiffMax {
		if err := c.Flush(clock - clockDiffMax + 1); err != nil {
			return err
		}
	}

	var interval uint64
	if len(c.queue) > 0 {
		interval = clock - c.queue[len(c.queue)-1].clock
	} else {
		interval = clock - c.lastStepClock
	}
	invSpeed := uint32(math.MaxUint32)
	if interval < math.MaxUint32 {
		invSpeed = uint32(interval)
	}
	c.queue = append(c.queue, queueStep{clock: clock, invSpeed: invSpeed})
	return nil
}

// QueueMsg flushes all pending steps and appends an out-of-band message
// (e.g. an endstop query), mirroring stepcompress_queue_msg.
func (c *Compressor) QueueMsg(data []byte) error {
	if err := c.Flush(math.MaxUint64); err != nil {
		return err
	}
	c.msgQueue = append(c.msgQueue, Message{ReqClock: c.lastStepClock, Data: data})
	return nil
}

// Reset flushes any pending steps and resets the compressor's clock base,
// mirroring stepcompress_reset.
func (c *Compressor) Reset(lastStepClock uint64) error {
	if err := c.Flush(math.MaxUint64); err != nil {
		return err
	}
	c.lastStepClock = lastStepClock
	c.lastStepSpeed = 0
	c.sdir = -1
	return nil
}

// fixedDivideByInteger rounds dividend/divisor to the nearest fixed-point
// value (16.16) with ties resolved away from zero, mirroring
// stepcompress.c's fixed_divide_by_integer.
func fixedDivideByInteger(dividend, divisor int64) int64 {
	v := dividend << 16
	if (v >= 0) == (divisor >= 0) {
		v += divisor / 2
	} else {
		v -= divisor / 2
	}
	return v / divisor
}

// generateMove fits the first count pending steps to a quadratic in i (the
// step index): clock(i) = last_step_clock + start_speed*i + (add1*i^2 +
// add2*i^3)/2^16. ok is false if the fit overflows a 32-bit fixed-point
// coefficient, mirroring generate_move's overflow guard.
func (c *Compressor) generateMove(count int) (stepMove, bool) {
	endIdx := c.pos + count - 1
	end := c.queue[endIdx]

	a0 := int64(c.lastStepClock)
	a1 := int64(c.lastStepSpeed)
	endTimeU := int64(end.clock)
	endSpeed := int64(end.invSpeed)
	cnt := int64(count)

	a2 := 3*endTimeU - 3*a0 - cnt*(2*a1+endSpeed)
	a3 := 2*a0 - 2*endTimeU + cnt*(a1+endSpeed)

	count2 := cnt * cnt
	count3 := count2 * cnt
	a2 = fixedDivideByInteger(a2, count2)
	a3 = fixedDivideByInteger(a3, count3)

	if a2addFactor := a2 * 2; a2addFactor > math.MaxInt32 || a2addFactor < math.MinInt32 {
		return stepMove{}, false
	}
	if a3addFactor := a3 * 6; a3addFactor > math.MaxInt32 || a3addFactor < math.MinInt32 {
		return stepMove{}, false
	}

	countPrev := cnt - 1
	count2Prev := countPrev * countPrev
	count3Prev := count2Prev * countPrev

	endTimeHigh := a2*count2 + a3*count3
	endTime := a0 + a1*cnt + (endTimeHigh >> 16)
	endTimePrevHigh := a2*count2Prev + a3*count3Prev
	endSpeedFixed := a1 + ((endTimeHigh - endTimePrevHigh) >> 16)

	return stepMove{
		add1:     int32(a2),
		add2:     int32(a3),
		count:    uint16(count),
		endTime:  uint64(endTime),
		endSpeed: uint32(endSpeedFixed),
	}, true
}

// evaluateError returns the absolute clock error the fitted move produces
// at step index idx (0-based within the move), mirroring evaluate_error.
func (c *Compressor) evaluateError(mv stepMove, idx int) uint64 {
	count := int64(idx + 1)
	count2 := count * count
	count3 := count2 * count
	t := int64(mv.add1)*count2 + int64(mv.add2)*count3
	t = int64(int32(t >> 16))
	t += int64(c.lastStepClock) + int64(c.lastStepSpeed)*count

	want := int64(c.queue[c.pos+idx].clock)
	diff := t - want
	if diff < 0 {
		diff = -diff
	}
	return uint64(diff)
}

// validateMove checks the fitted move's end-time error, first-step error,
// and (for multi-step moves) the error at two interior points placed at the
// golden-section ratios of the window, mirroring validate_move. Only those
// two interior points are checked; no further search for the largest
// interior error is made.
func (c *Compressor) validateMove(mv stepMove) bool {
	maxErr := uint64(c.maxError)
	count := int(mv.count)

	realEnd := c.queue[c.pos+count-1].clock
	var endErr uint64
	if realEnd > mv.endTime {
		endErr = realEnd - mv.endTime
	} else {
		endErr = mv.endTime - realEnd
	}
	if endErr > maxErr {
		return false
	}

	firstStep := int64(c.lastStepClock) + int64(c.lastStepSpeed) + int64((int64(mv.add1)+int64(mv.add2))>>16)
	want := int64(c.queue[c.pos].clock)
	diff := firstStep - want
	if diff < 0 {
		diff = -diff
	}
	if uint64(diff) > maxErr {
		return false
	}

	if count > 1 {
		b := float64(count - 1)
		ic := int(invphi2 * b)
		id := int(invphi * b)
		if ic < 0 {
			ic = 0
		}
		if id >= count {
			id = count - 1
		}
		if c.evaluateError(mv, ic) > maxErr {
			return false
		}
		if c.evaluateError(mv, id) > maxErr {
			return false
		}
	}
	return true
}

// findMove binary-searches for the largest count whose fit still validates,
// mirroring find_move.
func (c *Compressor) findMove() stepMove {
	best, ok := c.generateMove(1)
	if !ok {
		return stepMove{}
	}

	remaining := len(c.queue) - c.pos
	low, high := 1, remaining+1
	for low < high {
		mid := (low + high) / 2
		mv, ok := c.generateMove(mid)
		if ok && c.validateMove(mv) {
			best = mv
			low = mid + 1
		} else {
			high = mid
		}
	}
	return best
}

// Flush compresses and emits commands for every pending step whose clock is
// before moveClock, mirroring stepcompress_flush.
func (c *Compressor) Flush(moveClock uint64) error {
	for c.pos < len(c.queue) && c.lastStepClock < moveClock {
		mv := c.findMove()
		if mv.count == 0 {
			step := c.queue[c.pos]
			interval := step.clock - c.lastStepClock
			c.msgQueue = append(c.msgQueue, Message{
				ReqClock: c.lastStepClock,
				MinClock: c.lastStepClock,
				Data:     encodeMessage(c.queueStepMsgID, c.oid, clampInt32(interval)),
			})
			c.lastStepClock = step.clock
			if interval > math.MaxUint16 {
				c.lastStepSpeed = math.MaxUint16
			} else {
				c.lastStepSpeed = uint32(interval)
			}
			c.pos++
			continue
		}

		c.msgQueue = append(c.msgQueue, Message{
			ReqClock: c.lastStepClock,
			MinClock: c.lastStepClock,
			Data:     encodeMessage(c.queueStepsMsgID, c.oid, int32(mv.count), mv.add1, mv.add2),
		})
		c.lastStepClock = mv.endTime
		c.lastStepSpeed = mv.endSpeed
		c.pos += int(mv.count)
	}

	if c.pos >= len(c.queue) {
		c.queue = c.queue[:0]
		c.pos = 0
	}
	return nil
}

func clampInt32(v uint64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}
