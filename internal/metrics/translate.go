package metrics

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Translation selects the decoding strategy for one field.
// Params: none.
// Returns: enum value used by Translate dispatch.
type Translation uint8

const (
	// TranslateNone passes the value through unchanged.
	TranslateNone Translation = iota
	// TranslateDuration decodes RouterOS duration strings (1w2d3h4m5s) into seconds.
	TranslateDuration
)

var (
	translationsMu sync.RWMutex
	translations   = map[string]Translation{
		"uptime": TranslateDuration,
	}
)

type uptimeUnit struct {
	letter  byte
	seconds float64
}

// uptimeUnits lists duration components in the only accepted order.
var uptimeUnits = []uptimeUnit{
	{letter: 'w', seconds: 604800},
	{letter: 'd', seconds: 86400},
	{letter: 'h', seconds: 3600},
	{letter: 'm', seconds: 60},
	{letter: 's', seconds: 1},
}

// RegisterTranslation binds a field name to a translation strategy.
// Params: field exact field name; strategy decoding variant (TranslateNone removes the binding).
// Returns: none.
func RegisterTranslation(field string, strategy Translation) {
	translationsMu.Lock()
	defer translationsMu.Unlock()

	if strategy == TranslateNone {
		delete(translations, field)
		return
	}
	translations[field] = strategy
}

// TranslationFor returns the strategy registered for field.
// Params: field exact field name.
// Returns: registered strategy or TranslateNone.
func TranslationFor(field string) Translation {
	translationsMu.RLock()
	defer translationsMu.RUnlock()
	return translations[field]
}

// Translate normalizes one raw field value by field-name dispatch.
// Params: field selects the strategy; raw is the value read from the record.
// Returns: translated value, raw unchanged when no strategy applies, or malformed encoding error.
func Translate(field string, raw Value) (Value, error) {
	switch TranslationFor(field) {
	case TranslateDuration:
		if raw.Kind() == KindNumber {
			return raw, nil
		}
		seconds, err := parseUptimeField(field, raw.String())
		if err != nil {
			return Value{}, err
		}
		return Number(seconds), nil
	default:
		return raw, nil
	}
}

// ParseUptime converts a RouterOS duration string into total seconds.
// Params: raw text such as "2w3d4h5m6s", "10h" or "".
// Returns: total seconds or *TranslationError for malformed input.
func ParseUptime(raw string) (float64, error) {
	return parseUptimeField("uptime", raw)
}

// parseUptimeField parses the duration grammar reporting errors against field.
// Params: field name for error context; raw duration text.
// Returns: total seconds or *TranslationError.
func parseUptimeField(field string, raw string) (float64, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, nil
	}

	malformed := func(format string, args ...any) error {
		return &TranslationError{Field: field, Raw: raw, Reason: fmt.Sprintf(format, args...)}
	}

	total := 0.0
	lastRank := -1
	for idx := 0; idx < len(text); {
		start := idx
		for idx < len(text) && text[idx] >= '0' && text[idx] <= '9' {
			idx++
		}
		if idx == start {
			return 0, malformed("expected digits at offset %d, got %q", idx, text[idx])
		}
		if idx == len(text) {
			return 0, malformed("magnitude %s has no unit", text[start:idx])
		}

		rank := uptimeUnitRank(text[idx])
		if rank < 0 {
			return 0, malformed("unknown unit %q", text[idx])
		}
		if rank <= lastRank {
			return 0, malformed("unit %q out of order", text[idx])
		}

		magnitude, err := strconv.ParseUint(text[start:idx], 10, 64)
		if err != nil {
			return 0, malformed("magnitude %s out of range", text[start:idx])
		}

		total += float64(magnitude) * uptimeUnits[rank].seconds
		lastRank = rank
		idx++
	}

	return total, nil
}

// uptimeUnitRank returns unit position in canonical order.
// Params: letter unit character.
// Returns: rank index or -1 for unknown unit.
func uptimeUnitRank(letter byte) int {
	for rank, unit := range uptimeUnits {
		if unit.letter == letter {
			return rank
		}
	}
	return -1
}

// FormatUptime encodes a duration the way RouterOS reports uptime.
// Params: d elapsed time; sub-second precision is dropped.
// Returns: encoded string, "0s" for non-positive durations.
func FormatUptime(d time.Duration) string {
	remaining := int64(d / time.Second)
	if remaining <= 0 {
		return "0s"
	}

	var builder strings.Builder
	for _, unit := range uptimeUnits {
		size := int64(unit.seconds)
		count := remaining / size
		remaining %= size
		if count == 0 {
			continue
		}
		builder.WriteString(strconv.FormatInt(count, 10))
		builder.WriteByte(unit.letter)
	}
	return builder.String()
}
