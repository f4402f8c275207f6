package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"genctl/internal/config"
	"genctl/internal/manager"
)

// Execute runs the command tree with args, writing to stdout and stderr.
func Execute(args []string, stdout, stderr io.Writer) error {
	return ExecuteContext(context.Background(), args, stdout, stderr)
}

// ExecuteContext is Execute bound to ctx; serve stops when ctx ends.
func ExecuteContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := buildRootCmd(&Options{})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// buildRootCmd constructs the command tree bound to opts.
func buildRootCmd(opts *Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "genctl",
		Short:         "Manage models and run generations on a remote generation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", "", "Config file (yaml, json or toml; defaults "+envConfig+")")
	pf.StringVar(&opts.BaseURL, "base-url", config.DefaultBaseURL, "Remote service base URL (defaults "+envBaseURL+")")
	pf.StringVar(&opts.LogLevel, "log-level", config.DefaultLogLevel, "Log level: debug|info|warn|error (defaults "+envLogLevel+")")
	pf.BoolVar(&opts.LogJSON, "log-json", false, "Emit JSON logs instead of console output")

	root.AddCommand(
		statusCmd(opts),
		loadCmd(opts),
		unloadCmd(opts),
		clearAllCmd(opts),
		generateCmd(opts),
		serveCmd(opts),
		completionCmd(),
	)
	return root
}

func statusCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show the residency of every model",
		Example: "  genctl status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()
			return s.print(s.ctrl.Status())
		},
	}
}

func loadCmd(opts *Options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "load <model>",
		Short:   "Load a model on the remote service",
		Example: "  genctl load generative_art\n  genctl load generative_video --force",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()
			rec, err := s.ctrl.Load(contextOf(cmd), args[0], force)
			if err != nil {
				return err
			}
			return s.print(rec)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reload even when already loaded")
	return cmd
}

func unloadCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "unload <model>",
		Short:   "Unload a model on the remote service",
		Example: "  genctl unload generative_art",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()
			rec, err := s.ctrl.Unload(contextOf(cmd), args[0])
			if err != nil {
				return err
			}
			return s.print(rec)
		},
	}
}

func clearAllCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-all",
		Short: "Unload every model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()
			res := s.ctrl.ClearAll(contextOf(cmd))
			if err := s.print(res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("clear-all: some models failed to unload")
			}
			return nil
		},
	}
}

func generateCmd(opts *Options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:     "generate <art|video|streaming> <prompt...>",
		Short:   "Run one generation with the mode's fixed preset",
		Example: "  genctl generate art \"a lighthouse at dusk\" --out lighthouse.png",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := manager.ParseMode(args[0])
			if err != nil {
				return err
			}
			if out != "" && mode == manager.ModeVideo {
				return fmt.Errorf("--out writes images; video mode returns a file on the remote service (see video_url)")
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.close()
			res, err := s.ctrl.Generate(contextOf(cmd), string(mode), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if out != "" && res.ImageBase64 != "" {
				img, err := base64.StdEncoding.DecodeString(res.ImageBase64)
				if err != nil {
					return fmt.Errorf("decode image: %w", err)
				}
				if err := os.WriteFile(out, img, 0o644); err != nil {
					return err
				}
				s.log.Info().Str("file", out).Int("bytes", len(img)).Msg("image written")
				res.ImageBase64 = ""
			}
			return s.print(res)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the returned image to this file (art and streaming)")
	return cmd
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion <bash|zsh|fish|powershell>",
		Short:     "Generate shell completion scripts",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(w)
			case "zsh":
				return root.GenZshCompletion(w)
			case "fish":
				return root.GenFishCompletion(w, true)
			default:
				return root.GenPowerShellCompletionWithDesc(w)
			}
		},
	}
}
