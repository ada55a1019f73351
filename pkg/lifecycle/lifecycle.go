// Package lifecycle tracks the processes on the other end of a transfer.
package lifecycle

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/srediag/xfer/api"
)

var _ api.Process = (*Process)(nil)

// Process is an api.Process backed either by a child started here or by the
// PID of an unrelated process.
type Process struct {
	cmd   *exec.Cmd
	pid   int32
	stdin io.WriteCloser

	exited  atomic.Bool
	done    chan struct{}
	waitErr error
}

// Start starts cmd with a stdin pipe and tracks its exit in the background.
func Start(cmd *exec.Cmd) (*Process, error) {
	if cmd == nil {
		return nil, errors.New("lifecycle: nil command")
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &Process{
		cmd:   cmd,
		pid:   int32(cmd.Process.Pid),
		stdin: stdin,
		done:  make(chan struct{}),
	}
	go p.wait()
	return p, nil
}

// Attach returns a Process for an existing PID. It has no stdin and its
// liveness is polled from the OS.
func Attach(pid int32) *Process {
	return &Process{pid: pid}
}

func (p *Process) wait() {
	p.waitErr = p.cmd.Wait()
	p.exited.Store(true)
	close(p.done)
}

// Pid returns the OS process id.
func (p *Process) Pid() int32 {
	return p.pid
}

// Stdin returns the input stream of a started child, or nil for attached processes.
func (p *Process) Stdin() io.WriteCloser {
	return p.stdin
}

// HasExited reports whether the process is known to have terminated. An
// attached process whose state cannot be read is treated as alive.
func (p *Process) HasExited() bool {
	if p.cmd != nil {
		return p.exited.Load()
	}
	exists, err := process.PidExists(p.pid)
	if err != nil {
		return false
	}
	return !exists
}

// Wait blocks until a started child exits or ctx is done. Attached processes
// return immediately.
func (p *Process) Wait(ctx context.Context) error {
	if p.cmd == nil {
		return nil
	}
	select {
	case <-p.done:
		return p.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kill terminates a started child.
func (p *Process) Kill() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return errors.New("lifecycle: process was not started here")
	}
	return p.cmd.Process.Kill()
}
