//go:build !windows

package cmd

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func writePID(t *testing.T, path string, pid int) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
}

func TestStopServer_NoPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.pid")
	err := stopServer(path, time.Second, false, &bytes.Buffer{})
	if !errors.Is(err, errNotRunning) {
		t.Fatalf("stopServer() error = %v, want errNotRunning", err)
	}
}

func TestStopServer_StalePIDFile(t *testing.T) {
	done := exec.Command("true")
	if err := done.Run(); err != nil {
		t.Skipf("cannot run true: %v", err)
	}
	path := filepath.Join(t.TempDir(), "server.pid")
	writePID(t, path, done.Process.Pid)

	err := stopServer(path, time.Second, false, &bytes.Buffer{})
	if !errors.Is(err, errNotRunning) {
		t.Fatalf("stopServer() error = %v, want errNotRunning", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("stale PID file was not removed")
	}
}

func TestStopServer_StopsLiveProcess(t *testing.T) {
	child := exec.Command("sleep", "30")
	if err := child.Start(); err != nil {
		t.Skipf("cannot start sleep: %v", err)
	}
	// Reap the child so it does not linger as a zombie after SIGTERM.
	exited := make(chan struct{})
	go func() {
		_ = child.Wait()
		close(exited)
	}()
	t.Cleanup(func() {
		_ = child.Process.Kill()
		<-exited
	})

	path := filepath.Join(t.TempDir(), "server.pid")
	writePID(t, path, child.Process.Pid)

	var out bytes.Buffer
	if err := stopServer(path, 5*time.Second, false, &out); err != nil {
		t.Fatalf("stopServer() error: %v", err)
	}
	if !strings.Contains(out.String(), "Server stopped.") {
		t.Errorf("output = %q", out.String())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("PID file was not removed")
	}
}
