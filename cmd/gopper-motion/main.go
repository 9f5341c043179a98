// Command gopper-motion drives the motion core outside of any gcode
// dialect: its move-request format is the minimal line
// "target_x target_y target_z target_e speed", one record per line.
// Adapted from the teacher's host/cmd/gopper-host/main.go, replacing its
// bare flag-parsed interactive REPL with a github.com/spf13/cobra command
// tree (run/validate-config/bench).
package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gopper-motion/config"
	"gopper-motion/host/transport"
	"gopper-motion/motioncore"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "gopper-motion",
		Short: "Motion core: feedrate planning and step generation without a gcode dialect",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "machine config file (JSON or YAML)")
	_ = root.MarkPersistentFlagRequired("config")

	root.AddCommand(newRunCmd(), newValidateConfigCmd(), newBenchCmd())

	if err := root.Execute(); err != nil {
		slog.Error("gopper-motion failed", "err", err)
		os.Exit(1)
	}
}

func loadConfigAndPipeline() (*config.MachineConfig, *motioncore.Pipeline, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	p, err := motioncore.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build pipeline: %w", err)
	}
	return cfg, p, nil
}

func newValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load a machine config and report whether it builds a working pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, err := loadConfigAndPipeline()
			if err != nil {
				return err
			}
			slog.Info("config OK",
				"kinematics", cfg.Kinematics,
				"axes", cfg.Axes,
				"default_jerk", cfg.DefaultJerk,
				"pipeline_print_time", p.PrintTime())
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var movesPath string
	var device string
	var flushEvery int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Read move requests (one \"x y z e speed\" record per line) and drive the step generator",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := loadConfigAndPipeline()
			if err != nil {
				return err
			}

			var writer *transport.Writer
			if device != "" {
				writer, err = transport.Open(transport.DefaultConfig(device))
				if err != nil {
					return fmt.Errorf("open transport: %w", err)
				}
				defer writer.Close()
			}

			in := os.Stdin
			if movesPath != "" && movesPath != "-" {
				f, err := os.Open(movesPath)
				if err != nil {
					return fmt.Errorf("open moves file: %w", err)
				}
				defer f.Close()
				in = f
			}

			flush := func(lazy bool) error {
				batch, err := p.Flush(lazy)
				if err != nil {
					return err
				}
				if len(batch) == 0 {
					return nil
				}
				slog.Info("flushed MCU batch", "messages", len(batch), "print_time", p.PrintTime())
				if writer != nil {
					raw := make([][]byte, len(batch))
					for i, m := range batch {
						raw[i] = m.Data
					}
					if err := writer.WriteBatch(raw); err != nil {
						return err
					}
				}
				return nil
			}

			lineCount := 0
			scanner := bufio.NewScanner(in)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				target, speed, err := parseMoveLine(line)
				if err != nil {
					return fmt.Errorf("line %q: %w", line, err)
				}
				if err := p.EnqueueMove(target, speed); err != nil {
					return fmt.Errorf("enqueue %q: %w", line, err)
				}
				lineCount++
				if flushEvery > 0 && lineCount%flushEvery == 0 {
					if err := flush(true); err != nil {
						return err
					}
				}
			}
			if err := scanner.Err(); err != nil && err != io.EOF {
				return fmt.Errorf("read moves: %w", err)
			}
			return flush(false)
		},
	}

	cmd.Flags().StringVarP(&movesPath, "moves", "m", "-", "move-request file ('-' for stdin)")
	cmd.Flags().StringVarP(&device, "device", "d", "", "serial device to write MCU commands to (omit to log only)")
	cmd.Flags().IntVar(&flushEvery, "flush-every", 16, "lazily flush after this many enqueued moves (0 disables periodic flushing)")
	return cmd
}

func newBenchCmd() *cobra.Command {
	var moveCount int
	var step float64

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a synthetic zig-zag path through the pipeline and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := loadConfigAndPipeline()
			if err != nil {
				return err
			}

			start := time.Now()
			x, y := 0.0, 0.0
			for i := 0; i < moveCount; i++ {
				if i%2 == 0 {
					x += step
				} else {
					y += step
				}
				if err := p.EnqueueMove([4]float64{x, y, 0, float64(i) * 0.1}, 80); err != nil {
					return fmt.Errorf("enqueue move %d: %w", i, err)
				}
				if i%32 == 0 {
					if _, err := p.Flush(true); err != nil {
						return fmt.Errorf("lazy flush at move %d: %w", i, err)
					}
				}
			}
			batch, err := p.Flush(false)
			if err != nil {
				return fmt.Errorf("final flush: %w", err)
			}

			elapsed := time.Since(start)
			slog.Info("bench complete",
				"moves", moveCount,
				"final_batch_messages", len(batch),
				"print_time", p.PrintTime(),
				"wall_time", elapsed)
			return nil
		},
	}

	cmd.Flags().IntVarP(&moveCount, "moves", "n", 1000, "number of synthetic moves to enqueue")
	cmd.Flags().Float64Var(&step, "step", 1.0, "distance in mm each synthetic move advances")
	return cmd
}

// parseMoveLine parses "target_x target_y target_z target_e speed".
func parseMoveLine(line string) (target [4]float64, speed float64, err error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return target, 0, fmt.Errorf("expected 5 fields (x y z e speed), got %d", len(fields))
	}
	values := make([]float64, 5)
	for i, f := range fields {
		values[i], err = strconv.ParseFloat(f, 64)
		if err != nil {
			return target, 0, fmt.Errorf("field %d: %w", i, err)
		}
	}
	return [4]float64{values[0], values[1], values[2], values[3]}, values[4], nil
}
