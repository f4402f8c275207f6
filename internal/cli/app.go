package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"genctl/internal/config"
	"genctl/internal/manager"
	"genctl/internal/transport"
)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath  string
	BaseURL     string
	Addr        string
	LogLevel    string
	LogJSON     bool
	CORSOrigins string // comma separated allow list for serve
}

// resolveConfig merges defaults, the config file, environment variables and
// explicitly set flags, later sources winning.
func resolveConfig(cmd *cobra.Command, opts *Options) (config.Config, error) {
	var cfg config.Config
	path := opts.ConfigPath
	if path == "" {
		path = envStr(envConfig, config.Discover())
	}
	if path != "" {
		c, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	pick := func(flag, env string, dst *string, val string) {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			*dst = val
			return
		}
		if v := envStr(env, ""); v != "" {
			*dst = v
		}
	}
	pick("base-url", envBaseURL, &cfg.BaseURL, opts.BaseURL)
	pick("addr", envAddr, &cfg.Addr, opts.Addr)
	pick("log-level", envLogLevel, &cfg.LogLevel, opts.LogLevel)
	if f := cmd.Flags().Lookup("log-json"); f != nil && f.Changed {
		cfg.LogJSON = opts.LogJSON
	}
	var origins string
	pick("cors-origins", envCORS, &origins, opts.CORSOrigins)
	if origins != "" {
		cfg.CORSOrigins = splitCSV(origins)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newController wires transport, manager and dispatcher from cfg.
func newController(cfg config.Config, log zerolog.Logger) *manager.Controller {
	tr := transport.New(transport.Options{
		BaseURL:         cfg.BaseURL,
		Timeout:         cfg.RequestTimeout(),
		BreakerFailures: uint32(cfg.BreakerFailures),
		BreakerOpen:     cfg.BreakerOpen(),
		Logger:          &log,
	})
	return manager.NewController(
		manager.ManagerConfig{
			Transport:      tr,
			Models:         cfg.Models,
			OpTimeout:      cfg.LoadTimeout(),
			SkipClearSweep: !cfg.Sweep(),
			Logger:         &log,
			Publisher:      manager.NewLogPublisher(log),
		},
		manager.DispatcherConfig{
			QueueCapacity:  cfg.QueueCapacity,
			RequestTimeout: cfg.RequestTimeout(),
			Scheduling:     manager.Scheduling(cfg.Scheduling),
			JobRetention:   cfg.JobRetention(),
		},
	)
}

// session is the per-invocation state of a one-shot command.
type session struct {
	cfg  config.Config
	log  zerolog.Logger
	ctrl *manager.Controller
	out  io.Writer
}

// openSession resolves config and builds a controller whose records mirror
// the remote service, so lifecycle decisions start from the real state.
func openSession(cmd *cobra.Command, opts *Options) (*session, error) {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	log := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogJSON)
	s := &session{cfg: cfg, log: log, ctrl: newController(cfg, log), out: cmd.OutOrStdout()}
	if err := s.ctrl.Refresh(cmd.Context()); err != nil {
		s.close()
		return nil, fmt.Errorf("query remote status at %s: %w", cfg.BaseURL, err)
	}
	return s, nil
}

func (s *session) close() { s.ctrl.Close() }

func (s *session) print(v any) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
