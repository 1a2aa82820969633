package scan

import (
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// child is a running worker process. A reaper goroutine owns cmd.Wait so
// that liveness can be checked without blocking.
type child struct {
	cmd  *exec.Cmd
	log  *slog.Logger
	done chan struct{}
	err  error
}

// spawnHook, when set, is told the pid of every worker started.
var spawnHook func(pid int)

func spawn(cmd *exec.Cmd, log *slog.Logger) (*child, error) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn worker: %w: %w", ErrSetup, err)
	}
	c := &child{
		cmd:  cmd,
		log:  log.With("pid", cmd.Process.Pid),
		done: make(chan struct{}),
	}
	go func() {
		c.err = c.cmd.Wait()
		close(c.done)
	}()
	c.log.Debug("spawned worker")
	if spawnHook != nil {
		spawnHook(c.Pid())
	}
	return c, nil
}

func (c *child) Pid() int { return c.cmd.Process.Pid }

func (c *child) Done() <-chan struct{} { return c.done }

func (c *child) Exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the worker has been reaped.
func (c *child) Wait() error {
	<-c.done
	return c.err
}

// ExitCode is only meaningful once the worker has exited.
func (c *child) ExitCode() int {
	if !c.Exited() || c.cmd.ProcessState == nil {
		return -1
	}
	return c.cmd.ProcessState.ExitCode()
}

// terminate stops the worker: SIGTERM, up to grace for it to exit, then
// SIGKILL. It returns once the worker has been reaped.
func (c *child) terminate(grace time.Duration) {
	if c.Exited() {
		return
	}
	c.log.Debug("terminating worker")
	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		c.log.Debug("SIGTERM failed", "err", err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-c.done:
		return
	case <-timer.C:
	}

	c.log.Warn("worker ignored SIGTERM, killing", "grace", grace)
	if err := c.cmd.Process.Kill(); err != nil {
		c.log.Debug("SIGKILL failed", "err", err)
	}
	<-c.done
}

// reap waits up to grace for a worker that is expected to exit on its own,
// escalating if it does not.
func (c *child) reap(grace time.Duration) {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-c.done:
		c.log.Debug("worker exited", "code", c.ExitCode())
	case <-timer.C:
		c.terminate(grace)
	}
}
