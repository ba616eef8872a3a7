package source

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mkexporter/internal/metrics"
)

const (
	// MaxResponseBytes limits one RouterOS REST response body.
	MaxResponseBytes = 1 << 20

	errorBodyLimit = 2048
)

// restPaths maps record domains to RouterOS REST resources.
var restPaths = map[metrics.Domain]string{
	metrics.DomainHealth:         "/rest/system/health",
	metrics.DomainSystemResource: "/rest/system/resource",
}

// RESTOptions describes one RouterOS REST endpoint.
// Params: Address is scheme://host[:port]; credentials for basic auth; request timeout; TLS verification toggle.
// Returns: REST source options.
type RESTOptions struct {
	Address            string
	Username           string
	Password           string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// RESTSource fetches records over the RouterOS v7 REST API.
// Params: base address, credentials and HTTP client.
// Returns: record source instance.
type RESTSource struct {
	address  string
	username string
	password string
	client   *http.Client
}

// NewRESTSource creates a REST record source.
// Params: opts endpoint and transport settings.
// Returns: configured REST source.
func NewRESTSource(opts RESTOptions) *RESTSource {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed router certificates
	}

	return &RESTSource{
		address:  strings.TrimRight(strings.TrimSpace(opts.Address), "/"),
		username: opts.Username,
		password: opts.Password,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}
}

// Fetch queries one domain resource and converts the response into records.
// Params: ctx for cancellation; domain to query; fields to keep (snake_case names).
// Returns: records (possibly empty) or HTTP/decode error.
func (s *RESTSource) Fetch(ctx context.Context, domain metrics.Domain, fields []string) ([]metrics.Record, error) {
	path, ok := restPaths[domain]
	if !ok {
		return nil, fmt.Errorf("unsupported domain %q", domain)
	}
	if s.address == "" {
		return nil, fmt.Errorf("address is required")
	}

	url := s.address + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		bodyText := strings.TrimSpace(string(body))
		if bodyText == "" {
			return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
		}
		return nil, fmt.Errorf("GET %s: unexpected status %s: %s", url, resp.Status, bodyText)
	}

	lim := &io.LimitedReader{R: resp.Body, N: MaxResponseBytes + 1}
	payload, err := io.ReadAll(lim)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(payload) > MaxResponseBytes {
		return nil, fmt.Errorf("GET %s: response exceeds %d bytes", url, MaxResponseBytes)
	}

	records, err := DecodeRecords(payload, fields)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return records, nil
}

// DecodeRecords converts a RouterOS REST JSON payload into records.
// Params: payload is a JSON object or array of objects; fields filters kept keys (nil keeps all).
// Returns: records in payload order or decode error.
func DecodeRecords(payload []byte, fields []string) ([]metrics.Record, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var body any
	if err := decoder.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	keep := fieldSet(fields)
	switch typed := body.(type) {
	case map[string]any:
		return []metrics.Record{toRecord(typed, keep)}, nil
	case []any:
		objects := make([]map[string]any, 0, len(typed))
		for idx, item := range typed {
			object, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d: expected object, got %T", idx, item)
			}
			objects = append(objects, object)
		}
		if isNameValueList(objects) {
			return foldNameValueList(objects, keep), nil
		}
		records := make([]metrics.Record, 0, len(objects))
		for _, object := range objects {
			records = append(records, toRecord(object, keep))
		}
		return records, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected object or array, got %T", body)
	}
}

// isNameValueList detects the RouterOS 7 health layout ({"name": ..., "value": ...} rows).
// Params: objects decoded array items.
// Returns: true when every row carries name and value.
func isNameValueList(objects []map[string]any) bool {
	if len(objects) == 0 {
		return false
	}
	for _, object := range objects {
		if _, ok := object["name"].(string); !ok {
			return false
		}
		if _, ok := object["value"]; !ok {
			return false
		}
	}
	return true
}

// foldNameValueList folds name/value rows into one record.
// Params: objects health rows; keep optional field filter.
// Returns: one-record slice, or nil when no row survived the filter.
func foldNameValueList(objects []map[string]any, keep map[string]struct{}) []metrics.Record {
	record := make(metrics.Record)
	for _, object := range objects {
		name := NormalizeField(object["name"].(string))
		if !keepField(keep, name) {
			continue
		}
		if value, ok := toValue(object["value"]); ok {
			record[name] = value
		}
	}
	if len(record) == 0 {
		return nil
	}
	return []metrics.Record{record}
}

// toRecord converts one JSON object into a record.
// Params: object decoded JSON object; keep optional field filter.
// Returns: record with normalized keys.
func toRecord(object map[string]any, keep map[string]struct{}) metrics.Record {
	record := make(metrics.Record, len(object))
	for key, raw := range object {
		name := NormalizeField(key)
		if !keepField(keep, name) {
			continue
		}
		if value, ok := toValue(raw); ok {
			record[name] = value
		}
	}
	return record
}

// toValue converts one decoded JSON scalar into a raw value.
// Params: raw JSON value decoded with UseNumber.
// Returns: value and false for null or nested values.
func toValue(raw any) (metrics.Value, bool) {
	switch typed := raw.(type) {
	case string:
		return metrics.String(typed), true
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return metrics.String(typed.String()), true
		}
		return metrics.Number(parsed), true
	case bool:
		if typed {
			return metrics.String("true"), true
		}
		return metrics.String("false"), true
	default:
		return metrics.Value{}, false
	}
}

// NormalizeField maps RouterOS kebab-case property names to snake_case field names.
// Params: key raw property name.
// Returns: normalized field name.
func NormalizeField(key string) string {
	return strings.ReplaceAll(strings.TrimSpace(key), "-", "_")
}

// fieldSet builds lookup set for requested fields.
// Params: fields requested names.
// Returns: set or nil when every field is kept.
func fieldSet(fields []string) map[string]struct{} {
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}

// keepField reports whether name passes the filter.
// Params: keep optional filter set; name normalized field name.
// Returns: true when kept.
func keepField(keep map[string]struct{}, name string) bool {
	if keep == nil {
		return true
	}
	_, ok := keep[name]
	return ok
}
