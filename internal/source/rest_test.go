package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkexporter/internal/metrics"
)

func newRouterServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "prometheus" || pass != "secret" {
			http.Error(w, `{"error":401,"message":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		body, found := routes[r.URL.Path]
		if !found {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestSource(address string) *RESTSource {
	return NewRESTSource(RESTOptions{
		Address:  address,
		Username: "prometheus",
		Password: "secret",
		Timeout:  time.Second,
	})
}

func TestRESTSource_FetchSystemResource(t *testing.T) {
	server := newRouterServer(t, map[string]string{
		"/rest/system/resource": `{
			"architecture-name": "arm64",
			"board-name": "RB5009UG+S+",
			"cpu": "ARM64",
			"cpu-count": "4",
			"cpu-frequency": "1400",
			"cpu-load": "2",
			"free-hdd-space": "862236672",
			"free-memory": "860614656",
			"platform": "MikroTik",
			"total-hdd-space": "1073741824",
			"total-memory": "1073741824",
			"uptime": "1w2d3h4m5s",
			"version": "7.14.2 (stable)"
		}`,
	})

	fields := []string{"uptime", "version", "free_memory", "cpu_count", "board_name", "architecture_name"}
	records, err := newTestSource(server.URL).Fetch(context.Background(), metrics.DomainSystemResource, fields)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, metrics.Record{
		"uptime":            metrics.String("1w2d3h4m5s"),
		"version":           metrics.String("7.14.2 (stable)"),
		"free_memory":       metrics.String("860614656"),
		"cpu_count":         metrics.String("4"),
		"board_name":        metrics.String("RB5009UG+S+"),
		"architecture_name": metrics.String("arm64"),
	}, records[0])
}

func TestRESTSource_FetchHealthV6Object(t *testing.T) {
	server := newRouterServer(t, map[string]string{
		"/rest/system/health": `{"voltage": 24.1, "temperature": 41, "fan-mode": "auto"}`,
	})

	records, err := newTestSource(server.URL).Fetch(context.Background(), metrics.DomainHealth, []string{"voltage", "temperature"})
	require.NoError(t, err)
	assert.Equal(t, []metrics.Record{{
		"voltage":     metrics.Number(24.1),
		"temperature": metrics.Number(41),
	}}, records)
}

func TestRESTSource_FetchHealthV7NameValueRows(t *testing.T) {
	server := newRouterServer(t, map[string]string{
		"/rest/system/health": `[
			{".id": "*D", "name": "voltage", "type": "V", "value": "24.2"},
			{".id": "*E", "name": "temperature", "type": "C", "value": "38"},
			{".id": "*F", "name": "cpu-temperature", "type": "C", "value": "45"}
		]`,
	})

	records, err := newTestSource(server.URL).Fetch(context.Background(), metrics.DomainHealth, []string{"voltage", "temperature"})
	require.NoError(t, err)
	assert.Equal(t, []metrics.Record{{
		"voltage":     metrics.String("24.2"),
		"temperature": metrics.String("38"),
	}}, records)
}

func TestRESTSource_EmptyArrayYieldsNoRecords(t *testing.T) {
	server := newRouterServer(t, map[string]string{"/rest/system/health": `[]`})

	records, err := newTestSource(server.URL).Fetch(context.Background(), metrics.DomainHealth, []string{"voltage"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRESTSource_UnexpectedStatus(t *testing.T) {
	server := newRouterServer(t, map[string]string{})

	source := NewRESTSource(RESTOptions{Address: server.URL, Username: "prometheus", Password: "wrong", Timeout: time.Second})
	_, err := source.Fetch(context.Background(), metrics.DomainHealth, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestRESTSource_UnsupportedDomain(t *testing.T) {
	_, err := newTestSource("http://127.0.0.1:1").Fetch(context.Background(), metrics.Domain("interface"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported domain")
}

func TestRESTSource_InvalidJSON(t *testing.T) {
	server := newRouterServer(t, map[string]string{"/rest/system/resource": `{"uptime":`})

	_, err := newTestSource(server.URL).Fetch(context.Background(), metrics.DomainSystemResource, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestRESTSource_ResponseTooLarge(t *testing.T) {
	huge := `{"version":"` + strings.Repeat("x", MaxResponseBytes) + `"}`
	server := newRouterServer(t, map[string]string{"/rest/system/resource": huge})

	_, err := newTestSource(server.URL).Fetch(context.Background(), metrics.DomainSystemResource, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestDecodeRecords_Scalars(t *testing.T) {
	records, err := DecodeRecords([]byte(`[{"a": 1.5, "b": true, "c": null, "d": {"x": 1}, "e-f": "g"}, {"a": "2"}]`), nil)
	require.NoError(t, err)
	assert.Equal(t, []metrics.Record{
		{"a": metrics.Number(1.5), "b": metrics.String("true"), "e_f": metrics.String("g")},
		{"a": metrics.String("2")},
	}, records)
}

func TestDecodeRecords_RejectsScalarTopLevel(t *testing.T) {
	_, err := DecodeRecords([]byte(`"text"`), nil)
	require.Error(t, err)

	_, err = DecodeRecords([]byte(`[1, 2]`), nil)
	require.Error(t, err)
}

func TestNormalizeField(t *testing.T) {
	assert.Equal(t, "free_hdd_space", NormalizeField("free-hdd-space"))
	assert.Equal(t, "uptime", NormalizeField(" uptime "))
}
