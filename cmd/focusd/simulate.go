package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-focus/pkg/landmark"
	"github.com/teslashibe/go-focus/pkg/protocol"
)

// simulation describes a synthetic recording.
type simulation struct {
	Calibrate, Blink, Recover, Away, Absent int

	FPS    float64
	Jitter float64
	Seed   uint64
	Start  int64 // unix ms of the first frame; 0 leaves frames unstamped
}

func defaultSimulation() simulation {
	return simulation{
		Calibrate: landmark.DemoCalibrate,
		Blink:     landmark.DemoBlink,
		Recover:   landmark.DemoRecover,
		Away:      landmark.DemoAway,
		Absent:    landmark.DemoAbsent,
		FPS:       30,
		Seed:      1,
	}
}

func newSimulateCmd() *cobra.Command {
	sim := defaultSimulation()
	var output string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write a synthetic landmark recording as JSONL.",
		Long: `Write a synthetic recording: the user calibrates looking at the
screen, blinks, looks back, turns away with eyes shut and finally leaves
the frame. Defaults produce the 120-frame demo.

Examples:
  focusd simulate > demo.jsonl
  focusd simulate --away 300 --jitter 0.002 --start 1700000000000 -o long.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := writeSimulation(w, sim)
			if err != nil {
				return err
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d frames to %s\n", n, output)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&sim.Calibrate, "calibrate", sim.Calibrate, "frames looking at the screen")
	f.IntVar(&sim.Blink, "blink", sim.Blink, "frames with eyes shut (a blink)")
	f.IntVar(&sim.Recover, "recover", sim.Recover, "frames looking back after the blink")
	f.IntVar(&sim.Away, "away", sim.Away, "frames turned away with eyes shut")
	f.IntVar(&sim.Absent, "absent", sim.Absent, "frames with no face")
	f.Float64Var(&sim.FPS, "fps", sim.FPS, "frame rate for timestamps")
	f.Float64Var(&sim.Jitter, "jitter", sim.Jitter, "max landmark noise in normalized units")
	f.Uint64Var(&sim.Seed, "seed", sim.Seed, "jitter seed")
	f.Int64Var(&sim.Start, "start", sim.Start, "unix ms timestamp of the first frame (0 = unstamped)")
	f.StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// writeSimulation writes one protocol message per frame and returns the
// number of frames written.
func writeSimulation(w io.Writer, sim simulation) (int, error) {
	if sim.FPS <= 0 {
		return 0, fmt.Errorf("fps must be positive, got %v", sim.FPS)
	}
	for _, n := range []int{sim.Calibrate, sim.Blink, sim.Recover, sim.Away, sim.Absent} {
		if n < 0 {
			return 0, fmt.Errorf("segment lengths must not be negative")
		}
	}

	segments := landmark.Scenario(sim.Calibrate, sim.Blink, sim.Recover, sim.Away, sim.Absent)
	if sim.Jitter > 0 {
		segments = landmark.WithJitter(segments, sim.Jitter, sim.Seed)
	}
	step := time.Duration(float64(time.Second) / sim.FPS)

	bw := bufio.NewWriter(w)
	frames := landmark.Frames(segments)
	for i, set := range frames {
		var at time.Time
		if sim.Start > 0 {
			at = time.UnixMilli(sim.Start).Add(time.Duration(i) * step)
		}
		msg, err := protocol.NewLandmarksMessage(set, uint64(i), at)
		if err != nil {
			return i, err
		}
		data, err := msg.Bytes()
		if err != nil {
			return i, err
		}
		if _, err := bw.Write(append(data, '\n')); err != nil {
			return i, err
		}
	}
	return len(frames), bw.Flush()
}
