// Package motioncore wires a configured machine's kinematics, move queue,
// planner, segment queues, step generators, and step compressors into the
// single enqueue/flush entry point a host process drives. Adapted from the
// teacher's standalone.Manager lifecycle (Initialize/Start/Stop/
// EmergencyStop), replacing its gcode-interpreter input with a direct
// move-enqueue API.
package motioncore

import (
	"fmt"

	"gopper-motion/config"
	"gopper-motion/itersolve"
	"gopper-motion/kinematics"
	"gopper-motion/move"
	"gopper-motion/planner"
	"gopper-motion/segq"
	"gopper-motion/stepcompress"
)

// stepperAxis binds one kinematic stepper's step generator to the
// compressor that turns its steps into MCU commands.
type stepperAxis struct {
	name string
	sk   *itersolve.StepperKinematics
	sc   *stepcompress.Compressor
}

// Pipeline is a running machine: EnqueueMove feeds the move queue, Flush
// drains it through the planner, segment queue, step generators, and step
// compressors, and returns the resulting batch of MCU commands.
type Pipeline struct {
	cfg *config.MachineConfig
	kin kinematics.Kinematics

	queue *move.Queue

	useJerk bool
	trap    *planner.Trapezoidal
	jerk    *planner.JerkPlanner

	kinSegq      *segq.Queue
	extruderSegq *segq.Queue

	axes     []*stepperAxis
	extruder *stepperAxis

	extruderKin *itersolve.ExtruderKinematics

	sync *stepcompress.Steppersync

	printTime float64
	haveMove  bool
	lastPos   [4]float64
}

// New builds a Pipeline from cfg, constructing the kinematics, move queue,
// planner (jerk-limited if cfg.DefaultJerk > 0, trapezoidal otherwise), a
// shared kinematic segment queue plus the extruder's own, step generators,
// and step compressors, mirroring
// the wiring standalone.Manager.Initialize performs for its gcode path.
func New(cfg *config.MachineConfig) (*Pipeline, error) {
	kin, err := kinematics.New(cfg.Kinematics, cfg.DeltaTowerRadius, cfg.DeltaArmLength)
	if err != nil {
		return nil, err
	}

	queue, err := move.NewQueue(cfg.MoveQueueCapacity)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:          cfg,
		kin:          kin,
		queue:        queue,
		useJerk:      cfg.DefaultJerk > 0,
		kinSegq:      segq.NewQueue(),
		extruderSegq: segq.NewQueue(),
	}
	if p.useJerk {
		p.jerk = planner.NewJerkPlanner(queue)
	} else {
		p.trap = planner.NewTrapezoidal(queue)
	}

	names := kin.GetAxisNames()
	compressors := make([]*stepcompress.Compressor, 0, len(names)+1)

	var oid uint32
	for _, name := range names {
		axis, err := p.buildAxis(name, oid)
		if err != nil {
			return nil, err
		}
		axis.sk.SetPosition(0, 0, 0)
		p.axes = append(p.axes, axis)
		compressors = append(compressors, axis.sc)
		oid++
	}

	extruder, err := p.buildExtruder(oid)
	if err != nil {
		return nil, err
	}
	extruder.sk.SetPosition(0, 0, 0)
	p.extruder = extruder
	compressors = append(compressors, extruder.sc)

	p.sync = stepcompress.NewSteppersync(compressors, cfg.MoveQueueMoves)
	p.sync.SetTime(0, cfg.McuFreq)

	return p, nil
}

func (p *Pipeline) buildAxis(name string, oid uint32) (*stepperAxis, error) {
	axisCfg, ok := p.cfg.Axes[name]
	if !ok {
		return nil, fmt.Errorf("motioncore: no axis config for stepper %q", name)
	}
	scCfg, ok := p.cfg.Stepcompress[name]
	if !ok {
		return nil, fmt.Errorf("motioncore: no stepcompress config for stepper %q", name)
	}
	calcPos, err := p.kin.StepperCalcPosition(name)
	if err != nil {
		return nil, err
	}
	ax, ay, az := p.kin.ActiveAxes(name)

	sk := &itersolve.StepperKinematics{CalcPos: calcPos, ActiveFlags: activeFlags(ax, ay, az)}
	sk.SetSegq(p.kinSegq)

	sc := stepcompress.NewCompressor(oid)
	sc.Fill(scCfg.MaxError, scCfg.InvertStepDir, scCfg.QueueStepMsgID, scCfg.QueueStepsMsgID, scCfg.SetDirMsgID)
	sk.SetStepcompress(sc, 1.0/axisCfg.StepsPerMM)

	return &stepperAxis{name: name, sk: sk, sc: sc}, nil
}

func (p *Pipeline) buildExtruder(oid uint32) (*stepperAxis, error) {
	scCfg, ok := p.cfg.Stepcompress["e"]
	if !ok {
		return nil, fmt.Errorf("motioncore: no stepcompress config for extruder")
	}

	ek := itersolve.NewExtruderKinematics()
	ek.SetSmoothTime(p.cfg.Extruder.SmoothTime)
	ek.SetSegq(p.extruderSegq)

	sc := stepcompress.NewCompressor(oid)
	sc.Fill(scCfg.MaxError, scCfg.InvertStepDir, scCfg.QueueStepMsgID, scCfg.QueueStepsMsgID, scCfg.SetDirMsgID)
	ek.SetStepcompress(sc, 1.0/p.cfg.Extruder.StepsPerMM)

	p.extruderKin = ek
	return &stepperAxis{name: "e", sk: &ek.StepperKinematics, sc: sc}, nil
}

func activeFlags(x, y, z bool) int {
	flags := 0
	if x {
		flags |= itersolve.AFX
	}
	if y {
		flags |= itersolve.AFY
	}
	if z {
		flags |= itersolve.AFZ
	}
	return flags
}

// EnqueueMove reserves and commits a move from the pipeline's last position
// to target at the requested cruise speed, computing its junction limits
// against the move immediately ahead of it in the queue. target is
// (x, y, z, e); speed is in mm/s. Mirrors the reserve/calc_junction/commit
// sequence a gcode move command performs against the move queue.
func (p *Pipeline) EnqueueMove(target [4]float64, speed float64) error {
	jerk := 0.0
	if p.useJerk {
		jerk = p.cfg.DefaultJerk
	}

	mv, err := p.queue.Reserve(p.lastPos, target, speed, p.cfg.DefaultAccel, p.cfg.DefaultAccelToDecel, jerk)
	if err != nil {
		return err
	}
	if p.haveMove && p.queue.Size() > 0 {
		prev := p.queue.At(p.queue.Size() - 1)
		mv.CalcJunction(prev, p.cfg.JunctionDeviation, p.cfg.Extruder.InstantSpeed)
	}
	p.queue.Commit()
	p.lastPos = target
	p.haveMove = true
	return nil
}

// moveDuration returns the total time a solved move's profile occupies.
func moveDuration(mv *move.Move) float64 {
	if mv.Jerk != 0 {
		var t float64
		for _, jt := range mv.JerkT {
			t += jt
		}
		return t
	}
	return mv.AccelT + mv.CruiseT + mv.DecelT
}

// Flush runs the planner's look-ahead pass, appends every newly resolved
// move to the kinematic and extruder segment queues, generates steps for
// every stepper up to the resulting print time, and flushes the step
// compressors into a single synchronized MCU command batch. lazy mirrors
// the planner's own lazy-flush semantics: pass false to force-resolve and
// drain the entire queue (end of print, emergency stop).
//
// The queue's moves must be snapshotted before the planner's Flush runs,
// because move.Queue.Flush only advances its internal first/size cursors
// without clearing the backing array - by the time the planner call
// returns, move.Queue.At would no longer reach the moves it just flushed.
func (p *Pipeline) Flush(lazy bool) ([]stepcompress.Message, error) {
	if p.queue.Size() == 0 {
		return nil, nil
	}

	snapshot := make([]*move.Move, p.queue.Size())
	for i := range snapshot {
		snapshot[i] = p.queue.At(i)
	}

	var flushCount int
	if p.useJerk {
		flushCount = p.jerk.Flush(lazy)
	} else {
		flushCount = p.trap.Flush(lazy)
	}
	if flushCount == 0 {
		return nil, nil
	}

	for _, mv := range snapshot[:flushCount] {
		if p.useJerk {
			p.kinSegq.AppendJerkKinematicMove(p.printTime, mv)
			p.extruderSegq.AppendJerkExtrudeMove(p.printTime, mv, p.cfg.Extruder.PressureAdvance)
		} else {
			p.kinSegq.AppendMove(p.printTime, mv)
			p.extruderSegq.AppendExtrudeMove(p.printTime, mv, p.cfg.Extruder.PressureAdvance)
		}
		p.printTime += moveDuration(mv)
	}

	for _, axis := range p.axes {
		if err := axis.sk.GenerateSteps(p.printTime); err != nil {
			return nil, fmt.Errorf("motioncore: generate steps for %s: %w", axis.name, err)
		}
	}
	if err := p.extruder.sk.GenerateSteps(p.printTime); err != nil {
		return nil, fmt.Errorf("motioncore: generate steps for extruder: %w", err)
	}

	clock := uint64(p.printTime * p.cfg.McuFreq)
	batch, err := p.sync.Flush(clock)
	if err != nil {
		return nil, err
	}

	p.kinSegq.FreeMoves(p.printTime)
	p.extruderSegq.FreeMoves(p.printTime)
	return batch, nil
}

// EmergencyStop force-drains the move queue without regard to look-ahead
// smoothness and resets the jerk planner's carried-over cruise velocity,
// mirroring standalone.Manager.EmergencyStop's "stop planning, flush
// whatever is committed" behavior.
func (p *Pipeline) EmergencyStop() ([]stepcompress.Message, error) {
	batch, err := p.Flush(false)
	if p.useJerk {
		p.jerk.Reset()
	}
	p.haveMove = false
	return batch, err
}

// PrintTime returns the pipeline's current print time, the absolute
// timeline position up to which steps have been generated.
func (p *Pipeline) PrintTime() float64 {
	return p.printTime
}
