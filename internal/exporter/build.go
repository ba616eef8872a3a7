package exporter

import (
	"context"
	"fmt"
	"log/slog"

	"mkexporter/internal/config"
	"mkexporter/internal/match"
	"mkexporter/internal/metrics"
	"mkexporter/internal/source"
)

// NewExporterFromConfig builds targets for every configured router.
// Params: ctx bounds collections; cfg validated config; logger runtime logger.
// Returns: exporter or build error.
func NewExporterFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Exporter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if !config.ValidNamespace(cfg.Exporter.Namespace) {
		return nil, fmt.Errorf("namespace %q is not a valid metric name prefix", cfg.Exporter.Namespace)
	}

	targets := make([]Target, 0, len(cfg.Routers))
	for idx, router := range cfg.Routers {
		target, err := buildTarget(router)
		if err != nil {
			return nil, fmt.Errorf("router[%d] %q: %w", idx, router.Name, err)
		}
		if len(target.Collectors) == 0 && logger != nil {
			logger.Warn("router has no collectors selected", slog.String("router", router.Name))
		}
		targets = append(targets, target)
	}

	return New(ctx, cfg.Exporter.Namespace, targets, logger), nil
}

// buildTarget creates source and collectors for one router.
// Params: router normalized router config.
// Returns: exporter target or error.
func buildTarget(router config.RouterConfig) (Target, error) {
	src, err := buildSource(router)
	if err != nil {
		return Target{}, err
	}

	collectors, err := selectCollectors(router.Collectors)
	if err != nil {
		return Target{}, err
	}

	address := router.Address
	if address == "" {
		address = router.Source
	}

	return Target{
		Name:       router.Name,
		Address:    address,
		Source:     src,
		Collectors: collectors,
		Timeout:    router.Timeout.Duration,
	}, nil
}

// buildSource creates the record source for one router.
// Params: router normalized router config.
// Returns: record source or error on unknown kind.
func buildSource(router config.RouterConfig) (metrics.RecordSource, error) {
	switch router.Source {
	case config.SourceREST:
		return source.NewRESTSource(source.RESTOptions{
			Address:            router.Address,
			Username:           router.Username,
			Password:           router.Password,
			Timeout:            router.Timeout.Duration,
			InsecureSkipVerify: router.InsecureSkipVerify,
		}), nil
	case config.SourceHost:
		return source.NewHostSource(router.Root), nil
	default:
		return nil, fmt.Errorf("unsupported source %q", router.Source)
	}
}

// selectCollectors instantiates registered collectors matching patterns.
// Params: patterns include patterns and "!"-prefixed excludes.
// Returns: collectors in name order or pattern error.
func selectCollectors(patterns []string) ([]metrics.Collector, error) {
	selector, err := match.NewSelector(patterns)
	if err != nil {
		return nil, fmt.Errorf("collectors: %w", err)
	}

	names := selector.Select(metrics.CollectorNames())
	collectors := make([]metrics.Collector, 0, len(names))
	for _, name := range names {
		collectors = append(collectors, metrics.Factories[name]())
	}
	return collectors, nil
}
