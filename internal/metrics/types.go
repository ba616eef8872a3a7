package metrics

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind identifies how a raw field value was encoded by the device.
// Params: none.
// Returns: enum value for number/string values.
type ValueKind uint8

const (
	// KindNumber represents values already decoded as numeric literals.
	KindNumber ValueKind = iota
	// KindString represents free text or device-encoded strings.
	KindString
)

// Value carries one raw field value as returned by a record source.
// Params: kind selects which of num/str is meaningful.
// Returns: typed raw value for translation and metric building.
type Value struct {
	kind ValueKind
	num  float64
	str  string
}

// Number wraps a numeric literal.
// Params: f numeric value.
// Returns: number value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// String wraps a string value.
// Params: s raw text.
// Returns: string value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Kind returns value encoding kind.
// Params: none.
// Returns: number or string kind.
func (v Value) Kind() ValueKind {
	return v.kind
}

// String renders value verbatim for use as a label value.
// Params: none.
// Returns: raw text or shortest decimal representation of a number.
func (v Value) String() string {
	if v.kind == KindNumber {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.str
}

// Float converts value into a gauge sample value.
// Only finite decimal numbers are accepted; NaN, infinities and hex floats are rejected.
// Params: none.
// Returns: numeric value or error wrapping ErrNotNumeric.
func (v Value) Float() (float64, error) {
	if v.kind == KindNumber {
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return 0, fmt.Errorf("%w: %v", ErrNotNumeric, v.num)
		}
		return v.num, nil
	}

	text := strings.TrimSpace(v.str)
	if isHexFloat(text) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, v.str)
	}
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, v.str)
	}
	return parsed, nil
}

func isHexFloat(text string) bool {
	text = strings.TrimLeft(text, "+-")
	return len(text) > 1 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X')
}

// Record is one device record: field name -> raw value.
// Absent and null fields are not stored.
type Record map[string]Value

// Get looks up one field by exact name.
// Params: name field name.
// Returns: value and presence flag.
func (r Record) Get(name string) (Value, bool) {
	value, ok := r[name]
	return value, ok
}

// Clone returns a shallow copy safe for per-scrape translation.
// Params: none.
// Returns: copied record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for key, value := range r {
		out[key] = value
	}
	return out
}

// Domain names one group of device records.
type Domain string

const (
	// DomainHealth is the routerboard health domain (voltage, temperature).
	DomainHealth Domain = "health"
	// DomainSystemResource is the system resource domain (uptime, memory, cpu, storage).
	DomainSystemResource Domain = "system_resource"
)

// Sample is one gauge value with its enrichment labels.
type Sample struct {
	Value  float64
	Labels map[string]string
}

// GaugeMetric is one exposition-ready gauge with its samples in record order.
// LabelNames is the declared enrichment list; Samples carry only present labels.
type GaugeMetric struct {
	Name       string
	Help       string
	LabelNames []string
	Samples    []Sample
}

// RecordSource fetches raw records for one domain.
// Params: ctx for cancellation; domain to query; fields requested as one batch.
// Returns: zero or more records, or transport error.
type RecordSource interface {
	Fetch(ctx context.Context, domain Domain, fields []string) ([]Record, error)
}

// Collector turns one domain's records into gauge metrics.
// Params: context for cancellation and deadlines; record source to query.
// Returns: ordered metrics (nil when the source returned no records) or error.
type Collector interface {
	Name() string
	Collect(ctx context.Context, src RecordSource) ([]GaugeMetric, error)
}
