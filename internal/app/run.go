package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"mkexporter/internal/config"
	"mkexporter/internal/exporter"
	"mkexporter/internal/logging"
)

// Runtime defines runtime inputs required to start the exporter.
// Params: ConfigPath points to the TOML configuration file or directory; Reload triggers config reload.
// Returns: Runtime value used by Run.
type Runtime struct {
	ConfigPath string
	Reload     <-chan struct{}
}

type runDeps struct {
	loadConfig  func(string) (*config.Config, error)
	newLogger   func(config.LogConfig) (*slog.Logger, func(), error)
	startPprof  func(context.Context, config.PprofConfig, *slog.Logger) (func(), error)
	newExporter func(context.Context, *config.Config, *slog.Logger) (*exporter.Exporter, error)
	listen      func(string) (net.Listener, error)
}

// generation is the logger and exporter built from one loaded config.
type generation struct {
	logger      *slog.Logger
	closeLogger func()
	exporter    *exporter.Exporter
}

// endpoint is a bound metrics listener and its serving goroutine.
type endpoint struct {
	addr   string
	server *exporter.Server
	cancel context.CancelFunc
	done   chan error
}

// supervisor owns the live generation, the metrics endpoint and pprof.
type supervisor struct {
	ctx       context.Context
	deps      runDeps
	gen       *generation
	http      *endpoint
	pprof     config.PprofConfig
	stopPprof func()
}

// Run loads configuration, serves metrics and applies reloads from Runtime.Reload.
// Params: ctx controls lifecycle; rt provides runtime inputs and optional reload trigger channel.
// Returns: startup or serve error, nil on graceful stop.
func Run(ctx context.Context, rt Runtime) error {
	return runWithDeps(ctx, rt, defaultRunDeps())
}

// runWithDeps executes runtime lifecycle using injectable dependencies.
// A rejected reload leaves the running generation untouched.
// Params: ctx controls lifecycle; rt runtime inputs; deps start/reload dependencies.
// Returns: runtime error or nil on graceful stop.
func runWithDeps(ctx context.Context, rt Runtime, deps runDeps) error {
	if strings.TrimSpace(rt.ConfigPath) == "" {
		return fmt.Errorf("config path is required")
	}

	cfg, err := deps.loadConfig(rt.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gen, err := buildGeneration(ctx, cfg, deps)
	if err != nil {
		return err
	}

	s := &supervisor{ctx: ctx, deps: deps, gen: gen, stopPprof: func() {}}
	if err := s.startPprof(cfg.Pprof, gen.logger); err != nil {
		gen.closeLogger()
		return err
	}
	s.http, err = s.serve(cfg.Exporter.Listen, gen.exporter)
	if err != nil {
		s.stopPprof()
		gen.closeLogger()
		return err
	}
	logStartup(gen.logger, cfg)

	reload := rt.Reload
	for {
		select {
		case <-ctx.Done():
			s.shutdown("context canceled")
			return nil
		case err := <-s.http.done:
			s.http = nil
			if ctx.Err() != nil {
				s.shutdown("context canceled")
				return nil
			}
			if err == nil {
				err = fmt.Errorf("metrics server stopped unexpectedly")
			}
			s.gen.logger.Error("metrics server failed", slog.String("error", err.Error()))
			s.shutdown("metrics server failed")
			return err
		case _, ok := <-reload:
			if !ok {
				reload = nil
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			s.gen.logger.Info("config reload requested", slog.String("path", rt.ConfigPath))
			if err := s.reload(rt.ConfigPath); err != nil {
				s.gen.logger.Error("config reload rejected", slog.String("error", err.Error()))
			}
		}
	}
}

// defaultRunDeps returns production dependencies.
// Params: none.
// Returns: runtime dependency set.
func defaultRunDeps() runDeps {
	return runDeps{
		loadConfig:  config.Load,
		newLogger:   logging.New,
		startPprof:  startPprofServer,
		newExporter: exporter.NewExporterFromConfig,
		listen: func(addr string) (net.Listener, error) {
			return net.Listen("tcp", addr)
		},
	}
}

// buildGeneration creates logger and exporter for cfg without touching the running endpoint.
// Params: ctx bounds exporter collections; cfg validated config; deps factories.
// Returns: generation or build error; the logger is closed on failure.
func buildGeneration(ctx context.Context, cfg *config.Config, deps runDeps) (*generation, error) {
	logger, closeLogger, err := deps.newLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	exp, err := deps.newExporter(ctx, cfg, logger)
	if err != nil {
		closeLogger()
		return nil, fmt.Errorf("build exporter: %w", err)
	}

	return &generation{
		logger:      logger,
		closeLogger: closeLogger,
		exporter:    exp,
	}, nil
}

// reload applies the config at path.
// Same listen address: the exporter is swapped behind the running listener.
// New listen address: the new listener is bound before the old one stops.
// Params: path config file or directory.
// Returns: error when the new generation could not be built or bound.
func (s *supervisor) reload(path string) error {
	cfg, err := s.deps.loadConfig(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	next, err := buildGeneration(s.ctx, cfg, s.deps)
	if err != nil {
		return err
	}

	kept := cfg.Exporter.Listen == s.http.addr
	if kept {
		s.http.server.SetExporter(next.exporter)
	} else {
		moved, err := s.serve(cfg.Exporter.Listen, next.exporter)
		if err != nil {
			next.closeLogger()
			return err
		}
		if err := s.http.stop(); err != nil {
			next.logger.Warn("previous metrics server stopped with error", slog.String("error", err.Error()))
		}
		s.http = moved
	}

	if cfg.Pprof != s.pprof {
		s.stopPprof()
		s.stopPprof = func() {}
		s.pprof = config.PprofConfig{}
		if err := s.startPprof(cfg.Pprof, next.logger); err != nil {
			next.logger.Error("pprof restart failed", slog.String("error", err.Error()))
		}
	}

	prev := s.gen
	s.gen = next
	prev.closeLogger()

	next.logger.Info(
		"config reload applied",
		slog.String("listen", cfg.Exporter.Listen),
		slog.Bool("listener_kept", kept),
		slog.Int("routers", len(cfg.Routers)),
	)
	return nil
}

// serve binds addr and starts serving exp on it.
// Params: addr host:port; exp exporter to expose.
// Returns: running endpoint or listen error.
func (s *supervisor) serve(addr string, exp *exporter.Exporter) (*endpoint, error) {
	listener, err := s.deps.listen(addr)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", addr, err)
	}

	server, err := exporter.NewServer(exp)
	if err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("build metrics server: %w", err)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	ep := &endpoint{
		addr:   addr,
		server: server,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() {
		ep.done <- server.Serve(ctx, listener)
	}()
	return ep, nil
}

// stop shuts the endpoint down and waits for its serve goroutine.
// Params: none.
// Returns: serve error, nil on graceful stop.
func (e *endpoint) stop() error {
	e.cancel()
	return <-e.done
}

// startPprof starts the profiling endpoint for cfg.
// Params: cfg pprof section; logger destination for pprof events.
// Returns: start error.
func (s *supervisor) startPprof(cfg config.PprofConfig, logger *slog.Logger) error {
	stop, err := s.deps.startPprof(s.ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("start pprof: %w", err)
	}
	s.stopPprof = stop
	s.pprof = cfg
	return nil
}

// shutdown stops the endpoint and pprof, then closes the live logger.
// Params: reason logged with the final record.
// Returns: none.
func (s *supervisor) shutdown(reason string) {
	if s.http != nil {
		if err := s.http.stop(); err != nil {
			s.gen.logger.Warn("metrics server stopped with error", slog.String("error", err.Error()))
		}
		s.http = nil
	}
	s.stopPprof()
	s.gen.logger.Info("exporter stopped", slog.String("reason", reason))
	s.gen.closeLogger()
}

// logStartup emits initial startup metadata.
// Params: logger is initialized slog logger; cfg is validated runtime config.
// Returns: none.
func logStartup(logger *slog.Logger, cfg *config.Config) {
	names := make([]string, 0, len(cfg.Routers))
	for _, router := range cfg.Routers {
		names = append(names, router.Name)
	}
	logger.Info(
		"exporter started",
		slog.String("listen", cfg.Exporter.Listen),
		slog.String("namespace", cfg.Exporter.Namespace),
		slog.Duration("scrape_timeout", cfg.Exporter.ScrapeTimeout.Duration),
		slog.String("routers", strings.Join(names, ",")),
	)
	for _, router := range cfg.Routers {
		logger.Debug(
			"router configured",
			slog.String("router", router.Name),
			slog.String("source", router.Source),
			slog.String("address", router.Address),
			slog.String("collectors", strings.Join(router.Collectors, ",")),
		)
	}
}
