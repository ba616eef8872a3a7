package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestVersionCommand verifies build information output.
// Params: testing.T for assertions.
// Returns: none.
func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := out.String(); got != "mkexporter version=dev commit=none date=unknown\n" {
		t.Fatalf("unexpected version output: %q", got)
	}
}

// TestPrintCommand_RejectsMissingConfig verifies config errors surface.
// Params: testing.T for assertions.
// Returns: none.
func TestPrintCommand_RejectsMissingConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"print", "--config", filepath.Join(t.TempDir(), "missing.toml")})

	err := cmd.Execute()
	if err == nil {
		t.Fatalf("expected error for missing config")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestPrintCommand_HostRouter verifies one collection pass renders self metrics.
// Params: testing.T for assertions.
// Returns: none.
func TestPrintCommand_HostRouter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[exporter]
namespace = "mktxp"

[[router]]
name = "local"
source = "host"
collectors = ["system_resource"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out, logs bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs([]string{"print", "-c", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), `mktxp_collector_up{collector="system_resource",routerboard_address="host",routerboard_name="local"}`) {
		t.Fatalf("expected collector_up sample, got:\n%s", out.String())
	}
}
