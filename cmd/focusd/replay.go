package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/teslashibe/go-focus/internal/httpc"
	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/protocol"
	"github.com/teslashibe/go-focus/pkg/session"
)

const maxLineSize = 4 << 20

var (
	focusedColor     = color.New(color.FgGreen, color.Bold)
	distractedColor  = color.New(color.FgRed)
	noFaceColor      = color.New(color.FgHiBlack)
	calibratingColor = color.New(color.FgYellow)
)

// replayRow is one reported score.
type replayRow struct {
	Offset time.Duration
	State  focus.State
}

// replayResult summarizes an offline replay.
type replayResult struct {
	Rows     []replayRow
	Frames   int
	Rejected int
	Duration time.Duration
	Final    focus.State
}

// Rewards previews what a session with this recording would earn.
func (r replayResult) Rewards() session.Rewards {
	logs := make([]session.FocusLog, len(r.Rows))
	for i, row := range r.Rows {
		logs[i] = session.FocusLog{Score: row.State.Score}
	}
	return session.Compute(r.Duration, logs)
}

func newReplayCmd(v *viper.Viper) *cobra.Command {
	var (
		fps       float64
		server    string
		user      string
		sessionID string
		end       bool
	)

	cmd := &cobra.Command{
		Use:   "replay <file.jsonl>",
		Short: "Score a recorded landmark stream.",
		Long: `Run a recorded stream of landmarks and no_face messages (one JSON
message per line, "-" for stdin) through the estimator and print the
reported scores.

Frames without a timestamp are spaced at --fps. With --server the
recording is streamed to a running focusd instead.

Examples:
  focusd simulate > demo.jsonl && focusd replay demo.jsonl
  focusd replay --preset strict demo.jsonl
  focusd replay --server http://localhost:8080 --user alice --end demo.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			in, closeIn, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			out := cmd.OutOrStdout()
			if server != "" {
				api := httpc.NewAPI(server, user)
				return streamReplay(cmd.Context(), in, api, sessionID, end, out)
			}

			result, err := replay(in, cfg.Preset, cfg.ReportInterval, fps)
			if err != nil {
				return err
			}
			return printReplay(out, result)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&fps, "fps", 30, "frame rate assumed for frames without a timestamp")
	f.StringVar(&server, "server", "", "stream to a focusd server, e.g. http://localhost:8080")
	f.StringVar(&user, "user", "replay", "user ID for --server")
	f.StringVar(&sessionID, "session", "", "existing session ID for --server (default: start one)")
	f.BoolVar(&end, "end", false, "end the session after streaming and print its rewards")
	return cmd
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return scanner
}

// replay feeds every frame to a monitor and collects its reports.
func replay(r io.Reader, preset string, interval time.Duration, fps float64) (replayResult, error) {
	var result replayResult

	cfg, err := focus.ConfigByName(preset)
	if err != nil {
		return result, err
	}
	if fps <= 0 {
		return result, fmt.Errorf("fps must be positive, got %v", fps)
	}
	step := time.Duration(float64(time.Second) / fps)
	mon := session.NewMonitor("replay", cfg, interval)

	var start, last time.Time
	scanner := newScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		msg, err := protocol.ParseMessage(raw)
		if err != nil {
			return result, fmt.Errorf("line %d: %w", line, err)
		}
		if !msg.IsFrame() {
			continue
		}

		at := msg.Time()
		if at.IsZero() {
			at = time.UnixMilli(0).Add(time.Duration(result.Frames+result.Rejected) * step)
		}
		if start.IsZero() {
			start = at
		}
		last = at

		set, err := msg.LandmarkSet()
		if err == nil {
			var u session.Update
			u, err = mon.Frame(at, set)
			if err == nil {
				result.Frames++
				if u.Report {
					result.Rows = append(result.Rows, replayRow{Offset: at.Sub(start), State: u.State})
				}
				continue
			}
		}
		result.Rejected++
		log.Warn("skipping frame", "line", line, "error", err)
	}
	if err := scanner.Err(); err != nil {
		return result, err
	}

	result.Duration = last.Sub(start)
	result.Final = mon.State()
	return result, nil
}

func statusText(s focus.Status) string {
	switch s {
	case focus.StatusFocused:
		return focusedColor.Sprint(s)
	case focus.StatusDistracted:
		return distractedColor.Sprint(s)
	case focus.StatusNoFace:
		return noFaceColor.Sprint(s)
	default:
		return calibratingColor.Sprint(s)
	}
}

func printReplay(w io.Writer, result replayResult) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Time", "Frame", "Score", "Status", "Engaged"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		engaged := "no"
		if row.State.Engaged {
			engaged = "yes"
		}
		data = append(data, []string{
			fmt.Sprintf("%.1fs", row.Offset.Seconds()),
			strconv.Itoa(row.State.Frame),
			strconv.Itoa(row.State.Score),
			statusText(row.State.Status),
			engaged,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	rewards := result.Rewards()
	_, err := fmt.Fprintf(w, "\nframes: %d  rejected: %d  duration: %s  final: %d (%s)\n"+
		"average: %.1f  minutes: %d  coins: %d  xp: %d  pet: +%d\n",
		result.Frames, result.Rejected, result.Duration.Round(time.Millisecond),
		result.Final.Score, statusText(result.Final.Status),
		rewards.AverageFocus, rewards.Minutes, rewards.Coins, rewards.XP, rewards.PetHappiness)
	return err
}

// streamReplay sends every frame to a focusd server and waits for each score.
func streamReplay(ctx context.Context, r io.Reader, api *httpc.API, sessionID string, end bool, w io.Writer) error {
	if sessionID == "" {
		s, err := api.StartSession(ctx)
		if err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		sessionID = s.ID
		fmt.Fprintf(w, "started session %s\n", sessionID)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, api.IngestURL(sessionID), api.Header())
	if err != nil {
		return fmt.Errorf("dial ingest: %w", err)
	}
	defer conn.Close()

	var (
		sent, rejected int
		last           *protocol.ScoreData
	)
	scanner := newScanner(r)
	for scanner.Scan() {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		msg, err := protocol.ParseMessage(raw)
		if err != nil || !msg.IsFrame() {
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return fmt.Errorf("send frame: %w", err)
		}
		sent++

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read score: %w", err)
		}
		reply, err := protocol.ParseMessage(data)
		if err != nil {
			return err
		}
		switch reply.Type {
		case protocol.TypeScore:
			if last, err = reply.GetScoreData(); err != nil {
				return err
			}
		case protocol.TypeError:
			rejected++
			if e, err := reply.GetErrorData(); err == nil {
				log.Warn("frame rejected", "error", e.Message)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Fprintf(w, "sent %d frames to session %s (%d rejected)\n", sent, sessionID, rejected)
	if last != nil {
		fmt.Fprintf(w, "last score: %d (%s)\n", last.Score, statusText(last.Status))
	}
	if !end {
		return nil
	}

	ended, err := api.EndSession(ctx, sessionID)
	if err != nil {
		var apiErr *httpc.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("end session: %s", apiErr.Message)
		}
		return err
	}
	if ended.Result != nil {
		rw := ended.Result
		fmt.Fprintf(w, "average: %.1f  minutes: %d  coins: %d  xp: %d  pet: +%d\n",
			rw.AverageFocus, rw.Minutes, rw.Coins, rw.XP, rw.PetHappiness)
	}
	return nil
}
