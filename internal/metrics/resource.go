package metrics

import (
	"context"
	"fmt"
)

var resourceFields = []string{
	"uptime", "version", "free_memory", "total_memory",
	"cpu", "cpu_count", "cpu_frequency", "cpu_load",
	"free_hdd_space", "total_hdd_space",
	"architecture_name", "board_name",
}

// resourceTranslated lists fields decoded before gauges are built.
var resourceTranslated = []string{"uptime"}

// resourceLabels enrich every resource gauge; they never become gauges themselves.
var resourceLabels = []string{"version", "board_name", "cpu", "architecture_name"}

var resourceGauges = []gaugeDefinition{
	{name: "uptime", help: "Time interval since boot-up", field: "uptime"},
	{name: "free_memory", help: "Unused amount of RAM", field: "free_memory"},
	{name: "total_memory", help: "Amount of installed RAM", field: "total_memory"},
	{name: "free_hdd_space", help: "Free space on hard drive or NAND", field: "free_hdd_space"},
	{name: "total_hdd_space", help: "Size of the hard drive or NAND", field: "total_hdd_space"},
	{name: "cpu_load", help: "Percentage of used CPU resources", field: "cpu_load"},
	{name: "cpu_count", help: "Number of CPUs present on the system", field: "cpu_count"},
	{name: "cpu_frequency", help: "Current CPU frequency", field: "cpu_frequency"},
}

// SystemResourceCollector exposes uptime, memory, storage and CPU gauges.
type SystemResourceCollector struct{}

// NewSystemResourceCollector creates a system resource collector.
// Params: none.
// Returns: system resource collector.
func NewSystemResourceCollector() *SystemResourceCollector {
	return &SystemResourceCollector{}
}

// Name returns collector name.
// Params: none.
// Returns: "system_resource".
func (c *SystemResourceCollector) Name() string {
	return "system_resource"
}

// Collect fetches resource records, decodes uptime and builds labeled gauges.
// Params: ctx for cancellation; src record source.
// Returns: eight labeled gauges, nil when no records, or fetch/translation/build error.
func (c *SystemResourceCollector) Collect(ctx context.Context, src RecordSource) ([]GaugeMetric, error) {
	records, err := src.Fetch(ctx, DomainSystemResource, resourceFields)
	if err != nil {
		return nil, fmt.Errorf("fetch system resource records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	translated, err := translateRecords(records, resourceTranslated)
	if err != nil {
		return nil, err
	}

	return buildGauges(translated, resourceGauges, resourceLabels)
}
