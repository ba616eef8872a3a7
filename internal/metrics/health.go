package metrics

import (
	"context"
	"fmt"
)

var healthFields = []string{"voltage", "temperature"}

var healthGauges = []gaugeDefinition{
	{name: "routerboard_voltage", help: "Supplied routerboard voltage", field: "voltage"},
	{name: "routerboard_temperature", help: "Routerboard current temperature", field: "temperature"},
}

// HealthCollector exposes routerboard voltage and temperature.
type HealthCollector struct{}

// NewHealthCollector creates a health collector.
// Params: none.
// Returns: health collector.
func NewHealthCollector() *HealthCollector {
	return &HealthCollector{}
}

// Name returns collector name.
// Params: none.
// Returns: "health".
func (c *HealthCollector) Name() string {
	return "health"
}

// Collect fetches health records and builds voltage/temperature gauges.
// Params: ctx for cancellation; src record source.
// Returns: two unlabeled gauges, nil when no records, or fetch/build error.
func (c *HealthCollector) Collect(ctx context.Context, src RecordSource) ([]GaugeMetric, error) {
	records, err := src.Fetch(ctx, DomainHealth, healthFields)
	if err != nil {
		return nil, fmt.Errorf("fetch health records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	return buildGauges(records, healthGauges, nil)
}
