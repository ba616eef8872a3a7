package metrics

import (
	"fmt"
	"sort"
)

// Factories maps collector names to constructors.
var Factories = map[string]func() Collector{
	"health":          func() Collector { return NewHealthCollector() },
	"system_resource": func() Collector { return NewSystemResourceCollector() },
}

// CollectorNames lists registered collector names.
// Params: none.
// Returns: sorted name list.
func CollectorNames() []string {
	names := make([]string, 0, len(Factories))
	for name := range Factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// gaugeDefinition declares one gauge exposed by a domain collector.
type gaugeDefinition struct {
	name  string
	help  string
	field string
}

// translateRecords applies field translations to copies of records.
// Params: records as returned by the source; fields to translate where present.
// Returns: translated copies in input order or the first translation error.
func translateRecords(records []Record, fields []string) ([]Record, error) {
	out := make([]Record, 0, len(records))
	for _, record := range records {
		translated := record.Clone()
		for _, field := range fields {
			raw, ok := translated.Get(field)
			if !ok {
				continue
			}
			value, err := Translate(field, raw)
			if err != nil {
				return nil, err
			}
			translated[field] = value
		}
		out = append(out, translated)
	}
	return out, nil
}

// buildGauges runs the gauge builder once per definition.
// Params: records translated records; defs gauge definitions in emission order; labelFields shared enrichment list.
// Returns: gauges in definition order or builder error.
func buildGauges(records []Record, defs []gaugeDefinition, labelFields []string) ([]GaugeMetric, error) {
	out := make([]GaugeMetric, 0, len(defs))
	for _, def := range defs {
		metric, err := GaugeCollector(def.name, def.help, records, def.field, labelFields...)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", def.name, err)
		}
		out = append(out, metric)
	}
	return out, nil
}
