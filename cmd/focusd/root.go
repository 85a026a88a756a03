package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/teslashibe/go-focus/internal/config"
	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/session"
	"github.com/teslashibe/go-focus/pkg/web"
)

func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:   "focusd",
		Short: "Score user focus from face landmarks.",
		Long: `focusd turns a stream of face landmarks into a 0-100 focus score.

It serves a REST and WebSocket API for focus sessions, replays recorded
landmark streams offline, and generates synthetic recordings.`,
		Version:       web.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default .focusd.yaml in . or $HOME)")
	pf.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	pf.String("preset", focus.PresetDefault, "estimator preset: default, strict, lenient")
	pf.Duration("report-interval", session.DefaultReportInterval, "how often a live score is reported")
	bindFlags(v, pf, "config", "log-level", "preset", "report-interval")

	root.AddCommand(newServeCmd(v), newReplayCmd(v), newSimulateCmd())
	return root
}

// bindFlags makes flags the highest-priority source for their keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
}

// loadConfig resolves the config and initializes logging.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	log.Init(cfg.LogLevel)
	return cfg, nil
}
