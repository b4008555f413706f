package main

import (
	"bytes"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func TestRunDryRunPrintsConfigAndExits(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{"--dry-run", "--datadir", dir}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%q)", code, errOut.String())
	}
	if !bytes.Contains(out.Bytes(), []byte(`"Network"`)) {
		t.Fatalf("expected dry-run output to include the printed config, got %q", out.String())
	}
	if errOut.Len() != 0 {
		t.Fatalf("expected no stderr output, got %q", errOut.String())
	}
}

func TestRunRejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{"--dry-run", "--datadir", dir, "--log-level", "loud"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("expected exit code 2 for an invalid log level, got %d", code)
	}
}

func TestRunRejectsPruneWithoutKeepBlocks(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{"--dry-run", "--datadir", dir, "--prune", "--keep-blocks", "0"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("expected exit code 2 for prune without a keep-blocks window, got %d", code)
	}
}

// TestRunNonDryRunExitsCleanlyOnSignal opens a real store, starts the
// liveness server, and confirms the process shuts down cleanly on SIGINT
// rather than hanging. Run out-of-process since run() without --dry-run
// blocks until a signal arrives.
func TestRunNonDryRunExitsCleanlyOnSignal(t *testing.T) {
	if os.Getenv("CHAIND_SIGNAL_CHILD") == "1" {
		dir := t.TempDir()
		go func() {
			time.Sleep(200 * time.Millisecond)
			p, _ := os.FindProcess(os.Getpid())
			_ = p.Signal(syscall.SIGINT)
		}()
		code := run([]string{"--datadir", dir, "--bind", "127.0.0.1:0"}, os.Stdout, os.Stderr)
		os.Exit(code)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestRunNonDryRunExitsCleanlyOnSignal")
	cmd.Env = append(os.Environ(), "CHAIND_SIGNAL_CHILD=1")
	if err := cmd.Run(); err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			t.Fatalf("exit code=%d, want 0", ee.ExitCode())
		}
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateConfigRejectsEmptyNetwork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network = ""
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected an empty network name to be rejected")
	}
}

func TestValidateConfigRejectsBadBindAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BindAddr = "not-a-host-port"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected a malformed bind address to be rejected")
	}
}
