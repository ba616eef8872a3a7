package source

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"

	"mkexporter/internal/metrics"
)

// HostSource serves health and resource records for the local machine.
// Params: root is the filesystem path used for hdd space fields.
// Returns: record source backed by gopsutil.
type HostSource struct {
	root string
}

// NewHostSource creates a local host record source.
// Params: root filesystem path for storage fields ("/" when empty).
// Returns: configured host source.
func NewHostSource(root string) *HostSource {
	if root == "" {
		root = "/"
	}
	return &HostSource{root: root}
}

// Fetch reads the requested domain from the local machine.
// Params: ctx for cancellation; domain to read; fields to keep.
// Returns: zero or one record, or host info error.
func (s *HostSource) Fetch(ctx context.Context, domain metrics.Domain, fields []string) ([]metrics.Record, error) {
	var (
		record metrics.Record
		err    error
	)

	switch domain {
	case metrics.DomainHealth:
		record = s.health(ctx)
	case metrics.DomainSystemResource:
		record, err = s.resource(ctx)
	default:
		return nil, fmt.Errorf("unsupported domain %q", domain)
	}
	if err != nil {
		return nil, err
	}
	if len(record) == 0 {
		return nil, nil
	}

	keep := fieldSet(fields)
	for name := range record {
		if !keepField(keep, name) {
			delete(record, name)
		}
	}
	return []metrics.Record{record}, nil
}

// health reads the hottest temperature sensor.
// Params: ctx for cancellation.
// Returns: record with temperature, or empty record when sensors are unavailable.
func (s *HostSource) health(ctx context.Context) metrics.Record {
	record := make(metrics.Record)

	readings, err := sensors.TemperaturesWithContext(ctx)
	if err != nil && len(readings) == 0 {
		return record
	}

	hottest := 0.0
	found := false
	for _, sensor := range readings {
		if sensor.Temperature <= 0 {
			continue
		}
		if !found || sensor.Temperature > hottest {
			hottest = sensor.Temperature
			found = true
		}
	}
	if found {
		record["temperature"] = metrics.Number(hottest)
	}
	return record
}

// resource reads uptime, memory, CPU and storage usage.
// Params: ctx for cancellation.
// Returns: resource record or host info error; other read failures drop only their fields.
func (s *HostSource) resource(ctx context.Context) (metrics.Record, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("read host info: %w", err)
	}

	record := metrics.Record{
		"uptime":            metrics.String(metrics.FormatUptime(time.Duration(info.Uptime) * time.Second)),
		"version":           metrics.String(info.KernelVersion),
		"architecture_name": metrics.String(info.KernelArch),
		"board_name":        metrics.String(info.Hostname),
	}

	if vm, memErr := mem.VirtualMemoryWithContext(ctx); memErr == nil {
		record["free_memory"] = metrics.Number(float64(vm.Available))
		record["total_memory"] = metrics.Number(float64(vm.Total))
	}

	if infos, cpuErr := cpu.InfoWithContext(ctx); cpuErr == nil && len(infos) > 0 {
		record["cpu"] = metrics.String(infos[0].ModelName)
		if infos[0].Mhz > 0 {
			record["cpu_frequency"] = metrics.Number(infos[0].Mhz)
		}
	}

	if count, countErr := cpu.CountsWithContext(ctx, true); countErr == nil && count > 0 {
		record["cpu_count"] = metrics.Number(float64(count))
	}

	if total, loadErr := cpu.PercentWithContext(ctx, 0, false); loadErr == nil && len(total) > 0 {
		record["cpu_load"] = metrics.Number(total[0])
	}

	if usage, diskErr := disk.UsageWithContext(ctx, s.root); diskErr == nil {
		record["free_hdd_space"] = metrics.Number(float64(usage.Free))
		record["total_hdd_space"] = metrics.Number(float64(usage.Total))
	}

	return record, nil
}
