package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"go2tv.app/sonosbox/internal/adapters"
	go2tvadapters "go2tv.app/sonosbox/internal/adapters/go2tv"
	"go2tv.app/sonosbox/internal/api"
	"go2tv.app/sonosbox/internal/buildinfo"
	"go2tv.app/sonosbox/internal/config"
	"go2tv.app/sonosbox/internal/diagnostics"
	"go2tv.app/sonosbox/internal/discovery"
	"go2tv.app/sonosbox/internal/environment"
	"go2tv.app/sonosbox/internal/lifecycle"
	"go2tv.app/sonosbox/internal/media"
	"go2tv.app/sonosbox/internal/metrics"
	"go2tv.app/sonosbox/internal/session"
)

const (
	serverName      = "sonosbox"
	shutdownTimeout = 5 * time.Second
)

type options struct {
	debug           bool
	serverMode      bool
	configPath      string
	discover        bool
	discoverTimeout time.Duration
	selfTest        bool
	showVersion     bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet(serverName, flag.ContinueOnError)
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	fs.BoolVarP(&opts.serverMode, "server", "s", false, "admit API and UI requests from any address, not only this host")
	fs.StringVar(&opts.configPath, "config", config.DefaultPath, "path to the speaker configuration file")
	fs.BoolVar(&opts.discover, "discover", false, "list UPnP renderers on the network as JSON and exit")
	fs.DurationVar(&opts.discoverTimeout, "discover-timeout", discovery.DefaultTimeout, "how long --discover searches")
	fs.BoolVar(&opts.selfTest, "self-test", false, "print startup diagnostics as JSON and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Println(buildinfo.Version)
		return
	}

	logLevel := parseLogLevel(os.Getenv("SONOSBOX_LOG_LEVEL"))
	if opts.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	bundle := go2tvadapters.NewBundle()

	if opts.discover {
		if err := runDiscover(bundle, opts.discoverTimeout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, cfgErr := config.Load(opts.configPath)

	if opts.selfTest {
		if err := printJSON(diagnostics.SelfTest(opts.configPath, cfg, cfgErr)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if cfgErr != nil {
		fmt.Fprintln(os.Stderr, cfgErr)
		os.Exit(1)
	}
	if err := run(logger, logLevel, bundle, opts, cfg); err != nil {
		logger.Error("sonosbox_fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, logLevel slog.Level, bundle go2tvadapters.Bundle, opts options, cfg *config.Config) error {
	runCtx, stopSignals := lifecycle.WithShutdown(context.Background())
	defer stopSignals()

	logger.Info(
		"sonosbox_start",
		slog.String("version", buildinfo.Version),
		slog.String("config", opts.configPath),
		slog.String("log_level", logLevel.String()),
		slog.Bool("server_mode", opts.serverMode),
	)

	hostAddrs, err := environment.HostAddresses()
	if err != nil {
		return err
	}
	env, err := buildEnvironment(runCtx, logger, bundle.Speakers, cfg, hostAddrs, opts.serverMode)
	if err != nil {
		return err
	}
	web, err := media.NewResolver(cfg.Web)
	if err != nil {
		return fmt.Errorf("web root %q: %w", cfg.Web, err)
	}

	handler, err := api.New(api.Deps{
		Env:     env,
		Web:     web,
		Metrics: metrics.New(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("0.0.0.0", strconv.Itoa(environment.ListenPort)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return runCtx },
	}

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- srv.ListenAndServe()
	}()
	logger.Info("http_listening",
		slog.String("addr", srv.Addr),
		slog.String("media_root", env.MediaRoot()),
		slog.String("file_host", hostAddrs[0].String()),
	)

	var serveErr error
	select {
	case serveErr = <-serveErrCh:
	case <-runCtx.Done():
		logger.Info("sonosbox_stopping", slog.String("reason", "signal"))
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", serveErr)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("sonosbox_stopped")
	return nil
}

func buildEnvironment(
	ctx context.Context,
	logger *slog.Logger,
	speakers adapters.SpeakerFactory,
	cfg *config.Config,
	hostAddrs []netip.Addr,
	serverMode bool,
) (*environment.Environment, error) {
	if err := environment.ValidateInputs(cfg.Path, hostAddrs); err != nil {
		return nil, err
	}

	sessions := session.NewBuilder(speakers, logger).BuildAll(ctx, cfg.Descriptors())
	logger.Info("speaker_sessions_ready",
		slog.Int("configured", len(cfg.Speakers)),
		slog.Int("connected", len(sessions)),
	)
	return environment.New(cfg.Path, sessions, hostAddrs, serverMode)
}

func runDiscover(bundle go2tvadapters.Bundle, timeout time.Duration) error {
	ctx, stop := lifecycle.WithShutdown(context.Background())
	defer stop()

	found, err := discovery.NewService(bundle.Discovery).Renderers(ctx, timeout, false)
	if err != nil {
		return fmt.Errorf("discovering renderers: %w", err)
	}
	return printJSON(found)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "invalid SONOSBOX_LOG_LEVEL=%q; defaulting to info\n", raw)
		return slog.LevelInfo
	}
}
