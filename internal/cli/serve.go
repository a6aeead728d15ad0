package cli

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/papapizza/internal/catalog"
	"github.com/roach88/papapizza/internal/config"
	"github.com/roach88/papapizza/internal/httpapi"
	"github.com/roach88/papapizza/internal/orderservice"
	"github.com/roach88/papapizza/internal/redisstore"
	"github.com/roach88/papapizza/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Database  string
	RedisAddr string
	Menu      string
	Listen    string
	Faults    []string // "op=message"
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development order API",
		Long: `Run the development order API.

Orders are kept in memory unless --db (SQLite) or --redis is given. The
menu is built in unless --menu names a CUE file. --fault makes the next
call of an operation fail with the given message, once per flag.

Examples:
  papapizza serve
  papapizza serve --db ./orders.db --listen :8080
  papapizza serve --redis redis://localhost:6379/0
  papapizza serve --fault "upsert=out of stock" --fault commit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.RedisAddr, "redis", "", "Redis address or redis:// URL")
	cmd.Flags().StringVar(&opts.Menu, "menu", "", "CUE menu file")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config, :1984)")
	cmd.Flags().StringArrayVar(&opts.Faults, "fault", nil, "inject a one-shot failure: op=message")
	cmd.MarkFlagsMutuallyExclusive("db", "redis")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.serveConfig(cmd)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, closeRepo, err := buildService(ctx, cfg, opts.Faults)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeRepo(); closeErr != nil {
			slog.Error("error closing repository", "error", closeErr)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	opts.formatter(cmd).VerboseLog("listening on %s", ln.Addr())

	if err := httpapi.Serve(ctx, ln, httpapi.NewRouter(svc)); err != nil {
		return WrapExitError(ExitFailure, "order API stopped", err)
	}
	slog.Info("order api stopped")
	return nil
}

// serveConfig resolves the config and overlays the serve flags that were
// given.
func (o *ServeOptions) serveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Resolve(o.ConfigPath)
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database, cfg.RedisAddr = o.Database, ""
	}
	if flags.Changed("redis") {
		cfg.RedisAddr, cfg.Database = o.RedisAddr, ""
	}
	if flags.Changed("menu") {
		cfg.Menu = o.Menu
	}
	if flags.Changed("listen") {
		cfg.Listen = o.Listen
	}
	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// buildService wires the repository, menu, rate and faults named by cfg.
// The returned func closes the repository.
func buildService(ctx context.Context, cfg config.Config, faultSpecs []string) (*orderservice.Service, func() error, error) {
	menu := catalog.DefaultMenu()
	if cfg.Menu != "" {
		var err error
		if menu, err = catalog.Load(cfg.Menu); err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to load menu", err)
		}
	}
	rate, err := cfg.Rate()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	faults := orderservice.NewFaults()
	for _, spec := range faultSpecs {
		op, msg, err := orderservice.ParseFault(spec)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "invalid --fault", err)
		}
		if err := faults.Inject(op, msg); err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "invalid --fault", err)
		}
	}

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := orderservice.New(repo, menu,
		orderservice.WithGSTRate(rate),
		orderservice.WithFaults(faults),
	)
	slog.Info("order service ready", "menu_items", menu.Len(), "gst_rate", rate.String(), "faults", len(faultSpecs))
	return svc, repo.Close, nil
}

func openRepository(ctx context.Context, cfg config.Config) (orderservice.Repository, error) {
	switch {
	case cfg.RedisAddr != "":
		rs, err := redisstore.New(cfg.RedisAddr, redisstore.WithSession(cfg.RedisSession))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid redis address", err)
		}
		if err := rs.Initialize(ctx); err != nil {
			rs.Close()
			return nil, WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		return rs, nil
	case cfg.Database != "":
		slog.Info("opening database", "path", cfg.Database)
		st, err := store.Open(cfg.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return st, nil
	}
	slog.Info("using in-memory repository")
	return orderservice.NewMemoryRepository(), nil
}

