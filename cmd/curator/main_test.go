package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func writeTestConfig(t *testing.T) string {
	t.Helper()

	watchDir := t.TempDir()
	stateDir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	cfg := `service:
  name: curator-test
  log_level: error
watch:
  directory: ` + watchDir + `
ledger:
  path: ` + filepath.Join(stateDir, "processed.json") + `
history:
  path: ` + filepath.Join(stateDir, "history.db") + `
catalog:
  endpoint: https://catalog.example.org/api
  repository: repo-test
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestRunCLINoArgsShowsUsage(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI(nil)
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stdout, "Usage: curator") {
		t.Fatalf("expected usage output, got %q", stdout)
	}
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"frobnicate"})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Unknown command") {
		t.Fatalf("expected unknown-command error, got %q", stderr)
	}
}

func TestRunCLIVersion(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"version"})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "curator ") {
		t.Fatalf("expected version line, got %q", stdout)
	}
}

func TestRunDoctorValidConfig(t *testing.T) {
	cfgPath := writeTestConfig(t)
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runDoctor([]string{"--config", cfgPath})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (output %q)", code, stdout)
	}
	if !strings.Contains(stdout, "OK") {
		t.Fatalf("expected OK, got %q", stdout)
	}
}

func TestRunDoctorMissingWatchDirectoryFails(t *testing.T) {
	cfgPath := writeTestConfig(t)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	broken := strings.Replace(string(data), "watch:", "watch_disabled:", 1)
	if err := os.WriteFile(cfgPath, []byte(broken), 0o644); err != nil {
		t.Fatal(err)
	}

	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runDoctor([]string{"--config", cfgPath})
	})
	if code != 1 {
		t.Fatalf("expected exit 1 for missing watch directory, got %d", code)
	}
}

func TestConfigLockAndCheck(t *testing.T) {
	cfgPath := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"lock", "--config", cfgPath})
	})
	if code != 0 {
		t.Fatalf("lock failed: %d %q", code, stderr)
	}
	if !strings.Contains(stdout, "locked") {
		t.Fatalf("expected lock confirmation, got %q", stdout)
	}

	code, stdout, _ = captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"check", "--config", cfgPath})
	})
	if code != 0 || !strings.Contains(stdout, "checksum ok") {
		t.Fatalf("check failed: %d %q", code, stdout)
	}

	// Tamper and verify the check fails.
	if err := os.WriteFile(cfgPath, []byte("service: {name: tampered}\nwatch: {directory: /tmp}\ncatalog: {repository: x}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, stderr = captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"check", "--config", cfgPath})
	})
	if code != 1 || !strings.Contains(stderr, "Checksum verification failed") {
		t.Fatalf("expected checksum failure, got %d %q", code, stderr)
	}
}
