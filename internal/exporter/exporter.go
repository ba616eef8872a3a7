package exporter

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"mkexporter/internal/metrics"
)

const (
	labelRouterName    = "routerboard_name"
	labelRouterAddress = "routerboard_address"
	labelCollector     = "collector"

	// labelSeparator cannot occur in valid UTF-8 label values.
	labelSeparator = "\xff"
)

// Target is one device scraped on every exposition request.
// Params: identity labels, record source, selected collectors and per-collector timeout.
// Returns: exporter target.
type Target struct {
	Name       string
	Address    string
	Source     metrics.RecordSource
	Collectors []metrics.Collector
	Timeout    time.Duration
}

// Exporter adapts domain collectors to a prometheus.Collector.
// Params: base context, namespace, targets and logger.
// Returns: unchecked collector producing const gauges per scrape.
type Exporter struct {
	ctx       context.Context
	namespace string
	targets   []Target
	logger    *slog.Logger

	upDesc       *prometheus.Desc
	durationDesc *prometheus.Desc
}

// New creates an exporter over targets.
// Params: ctx bounds every collection; namespace prefixes metric names; targets to scrape; logger for failures.
// Returns: exporter instance.
func New(ctx context.Context, namespace string, targets []Target, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	selfLabels := []string{labelCollector, labelRouterName, labelRouterAddress}

	return &Exporter{
		ctx:       ctx,
		namespace: namespace,
		targets:   append([]Target(nil), targets...),
		logger:    logger,
		upDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "collector", "up"),
			"Whether the last collection of the collector succeeded",
			selfLabels,
			nil,
		),
		durationDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "collector", "duration_seconds"),
			"Duration of the last collection of the collector in seconds",
			selfLabels,
			nil,
		),
	}
}

// Targets returns configured targets.
// Params: none.
// Returns: copy of target list.
func (e *Exporter) Targets() []Target {
	return append([]Target(nil), e.targets...)
}

// Describe sends no descriptors, which registers the exporter as unchecked.
func (e *Exporter) Describe(chan<- *prometheus.Desc) {}

// Collect scrapes all targets concurrently and emits their gauges.
// Params: ch receives const metrics.
// Returns: none.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	var wg sync.WaitGroup
	for _, target := range e.targets {
		wg.Add(1)
		go func(target Target) {
			defer wg.Done()
			e.collectTarget(target, ch)
		}(target)
	}
	wg.Wait()
}

// collectTarget runs target collectors sequentially.
// Params: target to scrape; ch receives metrics.
// Returns: none.
func (e *Exporter) collectTarget(target Target, ch chan<- prometheus.Metric) {
	for _, collector := range target.Collectors {
		name := collector.Name()

		ctx, cancel := e.collectorContext(target.Timeout)
		start := time.Now()
		gauges, err := collector.Collect(ctx, target.Source)
		elapsed := time.Since(start)
		cancel()

		up := 1.0
		if err != nil {
			up = 0
			e.logger.Warn(
				"collector failed",
				slog.String("router", target.Name),
				slog.String("collector", name),
				slog.String("error", err.Error()),
			)
		} else {
			e.emitGauges(target, gauges, ch)
		}

		e.emitSelf(target, name, e.upDesc, up, ch)
		e.emitSelf(target, name, e.durationDesc, elapsed.Seconds(), ch)
	}
}

// emitSelf sends one collector bookkeeping sample.
// Params: target identity; collector name; desc self metric descriptor; value sample; ch receives metric.
// Returns: none; invalid descriptors are logged and skipped.
func (e *Exporter) emitSelf(target Target, collector string, desc *prometheus.Desc, value float64, ch chan<- prometheus.Metric) {
	metric, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, value, collector, target.Name, target.Address)
	if err != nil {
		e.logger.Warn(
			"metric rejected",
			slog.String("router", target.Name),
			slog.String("collector", collector),
			slog.String("error", err.Error()),
		)
		return
	}
	ch <- metric
}

// collectorContext derives one collector deadline from the base context.
// Params: timeout per collector; zero disables the deadline.
// Returns: derived context and cancel function.
func (e *Exporter) collectorContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(e.ctx, timeout)
	}
	return context.WithCancel(e.ctx)
}

// emitGauges converts domain gauges into const metrics.
// Only the first sample of each label-value tuple is sent per gauge,
// later duplicates are logged and dropped.
// Params: target identity; gauges from one collector; ch receives metrics.
// Returns: none.
func (e *Exporter) emitGauges(target Target, gauges []metrics.GaugeMetric, ch chan<- prometheus.Metric) {
	constLabels := prometheus.Labels{
		labelRouterName:    target.Name,
		labelRouterAddress: target.Address,
	}

	for _, gauge := range gauges {
		desc := prometheus.NewDesc(
			prometheus.BuildFQName(e.namespace, "", gauge.Name),
			gauge.Help,
			gauge.LabelNames,
			constLabels,
		)
		seen := make(map[string]struct{}, len(gauge.Samples))
		for idx, sample := range gauge.Samples {
			values := labelValues(gauge.LabelNames, sample.Labels)
			key := strings.Join(values, labelSeparator)
			if _, dup := seen[key]; dup {
				e.logger.Warn(
					"duplicate sample dropped",
					slog.String("router", target.Name),
					slog.String("metric", gauge.Name),
					slog.Int("sample", idx),
				)
				continue
			}
			seen[key] = struct{}{}

			metric, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, sample.Value, values...)
			if err != nil {
				e.logger.Warn(
					"metric rejected",
					slog.String("router", target.Name),
					slog.String("metric", gauge.Name),
					slog.String("error", err.Error()),
				)
				continue
			}
			ch <- metric
		}
	}
}

// labelValues orders sample labels by declared names.
// Params: names declared label names; labels sample label map.
// Returns: values with "" for absent labels.
func labelValues(names []string, labels map[string]string) []string {
	values := make([]string, len(names))
	for idx, name := range names {
		values[idx] = labels[name]
	}
	return values
}

// WriteText gathers g and renders text exposition.
// Params: g gatherer (usually a registry holding an exporter); w output.
// Returns: gather or write error.
func WriteText(g prometheus.Gatherer, w io.Writer) error {
	families, err := g.Gather()
	for _, family := range families {
		if _, writeErr := expfmt.MetricFamilyToText(w, family); writeErr != nil {
			return writeErr
		}
	}
	return err
}
