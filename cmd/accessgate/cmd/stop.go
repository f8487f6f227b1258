package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/accessgate/internal/config"
)

// stopPollInterval is how often stop checks whether the server exited.
const stopPollInterval = 200 * time.Millisecond

// errNotRunning means there is no live server behind the PID file.
var errNotRunning = errors.New("server is not running")

var (
	stopTimeout time.Duration
	stopForce   bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running accessgate server",
	Long: `Stop the server recorded in ~/.accessgate/server.pid.

The server is asked to drain (SIGTERM; on Windows the process is terminated)
and given --timeout to exit. The default timeout is server.shutdown_timeout
plus five seconds, which covers draining the recording queue. With --force a
server still running after the timeout is killed.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 0, "how long to wait for the server to exit (default shutdown_timeout+5s)")
	stopCmd.Flags().BoolVar(&stopForce, "force", true, "kill the server if it has not exited after --timeout")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, _ []string) error {
	timeout := stopTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
		if cfg, err := config.LoadConfigRaw(); err == nil {
			timeout = cfg.Server.ShutdownTimeout + 5*time.Second
		}
	}
	return stopServer(pidFilePath(), timeout, stopForce, cmd.ErrOrStderr())
}

// stopServer signals the process recorded at pidPath and waits up to
// timeout for it to exit. The PID file is removed whenever the process is
// known to be gone.
func stopServer(pidPath string, timeout time.Duration, force bool, out io.Writer) error {
	pid := readPIDFile(pidPath)
	if pid == 0 {
		return fmt.Errorf("%w: no PID file at %s", errNotRunning, pidPath)
	}
	proc, err := os.FindProcess(pid)
	if err != nil || !processIsAlive(proc) {
		_ = os.Remove(pidPath)
		return fmt.Errorf("%w: PID %d has exited, stale PID file removed", errNotRunning, pid)
	}

	fmt.Fprintf(out, "Stopping accessgate (PID %d)...\n", pid)
	if err := sendGracefulStop(proc); err != nil {
		return fmt.Errorf("signal PID %d: %w", pid, err)
	}

	if waitForExit(proc, timeout) {
		_ = os.Remove(pidPath)
		fmt.Fprintln(out, "Server stopped.")
		return nil
	}
	if !force {
		return fmt.Errorf("PID %d still running after %s", pid, timeout)
	}

	fmt.Fprintf(out, "Server still running after %s, killing it.\n", timeout)
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill PID %d: %w", pid, err)
	}
	_ = os.Remove(pidPath)
	return nil
}

// waitForExit polls proc until it exits or timeout elapses.
func waitForExit(proc *os.Process, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(stopPollInterval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if !processIsAlive(proc) {
				return true
			}
		case <-deadline.C:
			return !processIsAlive(proc)
		}
	}
}
