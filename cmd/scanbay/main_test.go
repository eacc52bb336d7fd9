package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTestConfig creates a loadable config; the required API keys come from
// the environment so the sample file can stay empty.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("SCANBAY_LLM_API_KEY", "test")
	t.Setenv("SCANBAY_SERP_API_KEY", "test")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if _, err := runCommand(t, "config", "init", "--path", cfgPath); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	return cfgPath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	output, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(output, target) {
		t.Fatalf("expected target path in output, got %q", output)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("sample config not written: %v", err)
	}
	if !strings.Contains(string(data), "[llm]") {
		t.Fatalf("sample config missing llm section")
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if _, err := runCommand(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init rejected")
	}
}

func TestSubmitRequiresInput(t *testing.T) {
	cfgPath := writeTestConfig(t)
	_, err := runCommand(t, "--config", cfgPath, "submit")
	if err == nil || !strings.Contains(err.Error(), "photo path or --barcodes") {
		t.Fatalf("expected input requirement error, got %v", err)
	}
}

func TestJobsRetryRequiresSelection(t *testing.T) {
	cfgPath := writeTestConfig(t)
	_, err := runCommand(t, "--config", cfgPath, "jobs", "retry")
	if err == nil || !strings.Contains(err.Error(), "--all") {
		t.Fatalf("expected selection requirement error, got %v", err)
	}
}
