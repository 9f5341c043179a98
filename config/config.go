// Package config loads a machine's kinematics, axis limits, and stepper
// wiring from JSON or YAML. Adapted from the teacher's
// standalone/config.LoadConfig: the JSON decoding path and
// applyDefaults/DefaultCartesianConfig shape are kept, extended with the
// jerk/junction-deviation/stepcompress fields this motion core needs and a
// YAML path selected by file extension.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AxisConfig describes one kinematic stepper's wiring and motion limits.
type AxisConfig struct {
	StepPin   string `json:"step_pin" yaml:"step_pin"`
	DirPin    string `json:"dir_pin" yaml:"dir_pin"`
	EnablePin string `json:"enable_pin" yaml:"enable_pin"`

	StepsPerMM      float64 `json:"steps_per_mm" yaml:"steps_per_mm"`
	MaxVelocity     float64 `json:"max_velocity" yaml:"max_velocity"`
	MaxAccel        float64 `json:"max_accel" yaml:"max_accel"`
	MaxAccelToDecel float64 `json:"max_accel_to_decel" yaml:"max_accel_to_decel"`
	Jerk            float64 `json:"jerk" yaml:"jerk"`

	MinPosition float64 `json:"min_position" yaml:"min_position"`
	MaxPosition float64 `json:"max_position" yaml:"max_position"`
	InvertDir   bool    `json:"invert_dir" yaml:"invert_dir"`
}

// ExtruderConfig describes the extruder stepper and its pressure-advance
// smoothing.
type ExtruderConfig struct {
	StepsPerMM      float64 `json:"steps_per_mm" yaml:"steps_per_mm"`
	MaxVelocity     float64 `json:"max_velocity" yaml:"max_velocity"`
	MaxAccel        float64 `json:"max_accel" yaml:"max_accel"`
	InstantSpeed    float64 `json:"instant_speed" yaml:"instant_speed"`
	PressureAdvance float64 `json:"pressure_advance" yaml:"pressure_advance"`
	SmoothTime      float64 `json:"smooth_time" yaml:"smooth_time"`
}

// StepcompressConfig tunes one stepper's step-compression tolerance and
// wire command IDs.
type StepcompressConfig struct {
	MaxError         uint32 `json:"max_error" yaml:"max_error"`
	InvertStepDir    bool   `json:"invert_step_dir" yaml:"invert_step_dir"`
	QueueStepMsgID   uint32 `json:"queue_step_msgid" yaml:"queue_step_msgid"`
	QueueStepsMsgID  uint32 `json:"queue_steps_msgid" yaml:"queue_steps_msgid"`
	SetDirMsgID      uint32 `json:"set_next_step_dir_msgid" yaml:"set_next_step_dir_msgid"`
}

// MachineConfig is the complete description of a machine's kinematics,
// motion limits, and per-stepper wiring.
type MachineConfig struct {
	Kinematics string                        `json:"kinematics" yaml:"kinematics"`
	Axes       map[string]AxisConfig         `json:"axes" yaml:"axes"`
	Extruder   ExtruderConfig                `json:"extruder" yaml:"extruder"`
	Stepcompress map[string]StepcompressConfig `json:"stepcompress" yaml:"stepcompress"`

	DefaultVelocity     float64 `json:"default_velocity" yaml:"default_velocity"`
	DefaultAccel        float64 `json:"default_accel" yaml:"default_accel"`
	DefaultAccelToDecel float64 `json:"default_accel_to_decel" yaml:"default_accel_to_decel"`
	DefaultJerk         float64 `json:"default_jerk" yaml:"default_jerk"`
	JunctionDeviation   float64 `json:"junction_deviation" yaml:"junction_deviation"`

	MoveQueueCapacity uint32 `json:"move_queue_capacity" yaml:"move_queue_capacity"`
	MoveQueueMoves    int    `json:"move_queue_moves" yaml:"move_queue_moves"`
	McuFreq           float64 `json:"mcu_freq" yaml:"mcu_freq"`

	DeltaTowerRadius float64 `json:"delta_tower_radius" yaml:"delta_tower_radius"`
	DeltaArmLength   float64 `json:"delta_arm_length" yaml:"delta_arm_length"`
}

// LoadConfig loads a MachineConfig from path, choosing JSON or YAML decoding
// by file extension (.yaml/.yml vs everything else).
func LoadConfig(path string) (*MachineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return LoadYAML(data)
	}
	return LoadJSON(data)
}

// LoadJSON loads a MachineConfig from JSON bytes, mirroring the teacher's
// standalone/config.LoadConfig.
func LoadJSON(data []byte) (*MachineConfig, error) {
	var cfg MachineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse json: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadYAML loads a MachineConfig from YAML bytes.
func LoadYAML(data []byte) (*MachineConfig, error) {
	var cfg MachineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *MachineConfig) {
	if cfg.Kinematics == "" {
		cfg.Kinematics = "cartesian"
	}
	if cfg.DefaultVelocity == 0 {
		cfg.DefaultVelocity = 100
	}
	if cfg.DefaultAccel == 0 {
		cfg.DefaultAccel = 1000
	}
	if cfg.DefaultAccelToDecel == 0 {
		cfg.DefaultAccelToDecel = cfg.DefaultAccel
	}
	if cfg.JunctionDeviation == 0 {
		cfg.JunctionDeviation = 0.05
	}
	if cfg.MoveQueueCapacity == 0 {
		cfg.MoveQueueCapacity = 256
	}
	if cfg.MoveQueueMoves == 0 {
		cfg.MoveQueueMoves = 64
	}
	if cfg.McuFreq == 0 {
		cfg.McuFreq = 16000000
	}
	if cfg.Extruder.SmoothTime == 0 {
		cfg.Extruder.SmoothTime = 0.04
	}
	if cfg.Extruder.InstantSpeed == 0 {
		cfg.Extruder.InstantSpeed = 1.0
	}

	for name, axis := range cfg.Axes {
		if axis.MaxAccelToDecel == 0 {
			axis.MaxAccelToDecel = axis.MaxAccel
		}
		cfg.Axes[name] = axis
	}
	for name, sc := range cfg.Stepcompress {
		if sc.MaxError == 0 {
			sc.MaxError = 1
		}
		cfg.Stepcompress[name] = sc
	}
}

// DefaultCartesianConfig returns a fully populated example configuration
// for a Cartesian printer, mirroring the teacher's
// standalone/config.DefaultCartesianConfig.
func DefaultCartesianConfig() *MachineConfig {
	cfg := &MachineConfig{
		Kinematics: "cartesian",
		Axes: map[string]AxisConfig{
			"x": {StepPin: "PA0", DirPin: "PA1", EnablePin: "PA2", StepsPerMM: 80, MaxVelocity: 300, MaxAccel: 3000, Jerk: 10, MinPosition: 0, MaxPosition: 235},
			"y": {StepPin: "PA3", DirPin: "PA4", EnablePin: "PA2", StepsPerMM: 80, MaxVelocity: 300, MaxAccel: 3000, Jerk: 10, MinPosition: 0, MaxPosition: 235},
			"z": {StepPin: "PA5", DirPin: "PA6", EnablePin: "PA2", StepsPerMM: 400, MaxVelocity: 5, MaxAccel: 100, Jerk: 0.4, MinPosition: 0, MaxPosition: 250},
			"e": {StepPin: "PB0", DirPin: "PB1", EnablePin: "PB2", StepsPerMM: 415, MaxVelocity: 25, MaxAccel: 1500, Jerk: 5},
		},
		Extruder: ExtruderConfig{
			StepsPerMM:      415,
			MaxVelocity:     25,
			MaxAccel:        1500,
			InstantSpeed:    1.0,
			PressureAdvance: 0.05,
			SmoothTime:      0.04,
		},
		Stepcompress: map[string]StepcompressConfig{
			"x": {MaxError: 1, QueueStepMsgID: 1, QueueStepsMsgID: 2, SetDirMsgID: 3},
			"y": {MaxError: 1, QueueStepMsgID: 4, QueueStepsMsgID: 5, SetDirMsgID: 6},
			"z": {MaxError: 1, QueueStepMsgID: 7, QueueStepsMsgID: 8, SetDirMsgID: 9},
			"e": {MaxError: 1, QueueStepMsgID: 10, QueueStepsMsgID: 11, SetDirMsgID: 12},
		},
		DefaultVelocity:     100,
		DefaultAccel:        3000,
		DefaultAccelToDecel: 3000,
		DefaultJerk:         10,
		JunctionDeviation:   0.05,
		MoveQueueCapacity:   256,
		MoveQueueMoves:      64,
		McuFreq:             16000000,
	}
	applyDefaults(cfg)
	return cfg
}
