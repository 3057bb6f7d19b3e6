package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/simp-lee/userlist/internal/config"
	"github.com/simp-lee/userlist/internal/console"
	"github.com/simp-lee/userlist/internal/controller"
	"github.com/simp-lee/userlist/internal/domain"
	"github.com/simp-lee/userlist/internal/remote"
)

type options struct {
	configPath   string
	baseURL      string
	pageSize     int
	status       string
	search       string
	latency      time.Duration
	discardStale bool
	yes          bool
}

func newRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "userctl",
		Short:        "Browse and edit the users of a json-server style collection",
		SilenceUsage: true,
		Long: `userctl pages through the /users collection of a json-server compatible
server. Type help at the prompt for the list of commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), &opts, cmd.Flags(), in, out)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to configuration file; environment only when empty")
	fs.StringVarP(&opts.baseURL, "url", "u", "", "collection server base URL (overrides client.base_url)")
	fs.IntVarP(&opts.pageSize, "page-size", "n", 0, "users per page (overrides client.page_size)")
	fs.StringVar(&opts.status, "status", "", "initial status filter: active or inactive")
	fs.StringVar(&opts.search, "search", "", "initial search text")
	fs.DurationVar(&opts.latency, "latency", 0, "artificial delay before each request (overrides client.latency)")
	fs.BoolVar(&opts.discardStale, "discard-stale", false, "ignore list responses overtaken by a newer request")
	fs.BoolVarP(&opts.yes, "yes", "y", false, "do not ask before removing a user")

	return cmd
}

func run(ctx context.Context, opts *options, fs *pflag.FlagSet, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadClient(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(&cfg.Client, opts, fs); err != nil {
		return err
	}

	// stdout belongs to the table.
	if cfg.Log.Output == config.DefaultLogOutput {
		cfg.Log.Output = "stderr"
	}
	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() {
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	client, err := remote.New(cfg.Client.BaseURL,
		remote.WithTimeout(cfg.Client.TimeoutDuration()),
		remote.WithLatency(cfg.Client.LatencyDuration()),
		remote.WithLogger(log.Logger),
	)
	if err != nil {
		return err
	}

	ctrlOpts := []controller.Option{
		controller.WithPageSize(cfg.Client.PageSize),
		controller.WithFilters(controller.Filters{
			Status: domain.Status(opts.status),
			Search: opts.search,
		}),
		controller.WithLogger(log.Logger),
	}
	if cfg.Client.DiscardStale {
		ctrlOpts = append(ctrlOpts, controller.WithDiscardStaleResponses())
	}
	ctrl := controller.New(client, ctrlOpts...)

	sessionOpts := []console.Option{console.WithLogger(log.Logger)}
	if opts.yes {
		sessionOpts = append(sessionOpts, console.WithoutConfirm())
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Debug("console started",
		slog.String("base_url", cfg.Client.BaseURL),
		slog.Int("page_size", cfg.Client.PageSize),
	)
	err = console.NewSession(ctrl, in, out, sessionOpts...).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applyFlags overlays explicitly set flags on the loaded client settings.
func applyFlags(c *config.ClientConfig, opts *options, fs *pflag.FlagSet) error {
	if fs.Changed("url") {
		c.BaseURL = opts.baseURL
	}
	if fs.Changed("page-size") {
		if opts.pageSize <= 0 {
			return fmt.Errorf("invalid --page-size %d: must be positive", opts.pageSize)
		}
		c.PageSize = opts.pageSize
	}
	if fs.Changed("latency") {
		if opts.latency < 0 {
			return fmt.Errorf("invalid --latency %s: must not be negative", opts.latency)
		}
		c.Latency = opts.latency.String()
	}
	if fs.Changed("discard-stale") {
		c.DiscardStale = opts.discardStale
	}
	if opts.status != "" && !domain.Status(opts.status).Valid() {
		return fmt.Errorf("invalid --status %q: want active or inactive", opts.status)
	}
	return nil
}
