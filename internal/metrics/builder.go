package metrics

import "fmt"

// GaugeCollector builds one gauge from a record sequence.
// Params: name/help static metric identity; records in scrape order; valueField numeric field;
// labelFields enrichment fields read from the same record.
// Returns: gauge with one sample per record holding valueField, or error for non-numeric values.
func GaugeCollector(name, help string, records []Record, valueField string, labelFields ...string) (GaugeMetric, error) {
	metric := GaugeMetric{
		Name:       name,
		Help:       help,
		LabelNames: append([]string(nil), labelFields...),
		Samples:    make([]Sample, 0, len(records)),
	}

	for idx, record := range records {
		raw, ok := record.Get(valueField)
		if !ok {
			continue
		}

		value, err := raw.Float()
		if err != nil {
			return GaugeMetric{}, fmt.Errorf("metric %s: record %d field %s: %w", name, idx, valueField, err)
		}

		labels := make(map[string]string, len(labelFields))
		for _, labelField := range labelFields {
			if labelValue, present := record.Get(labelField); present {
				labels[labelField] = labelValue.String()
			}
		}

		metric.Samples = append(metric.Samples, Sample{Value: value, Labels: labels})
	}

	return metric, nil
}
