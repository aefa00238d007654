package sumatra

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Process is one invocation of the external tool.
//
// Implementations must tolerate Kill and Close on a process in any state.
type Process interface {
	// Start launches the process. Failures to launch are returned as *LaunchError.
	Start() error
	// WaitForExit blocks the caller until the process exits (true) or timeout
	// elapses (false). It never kills the process.
	WaitForExit(ctx context.Context, timeout time.Duration) (bool, error)
	// Kill terminates a running process. It is a no-op once the process exited.
	Kill() error
	// Close releases the OS resources held by the process.
	Close() error
}

// ProcessFactory binds an executable and options into a not yet started Process.
type ProcessFactory interface {
	Create(executablePath string, options PrintingOptions) Process
}

// ProcessFactoryFunc adapts a plain function to ProcessFactory.
type ProcessFactoryFunc func(executablePath string, options PrintingOptions) Process

// Create calls f.
func (f ProcessFactoryFunc) Create(executablePath string, options PrintingOptions) Process {
	return f(executablePath, options)
}

// State is the lifecycle position of a process.
type State int

const (
	NotStarted State = iota
	Running
	Exited
	Killed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Exited:
		return "exited"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}

// SystemProcessFactory creates processes backed by os/exec.
type SystemProcessFactory struct{}

// Create returns a SystemProcess; nothing is launched until Start.
func (SystemProcessFactory) Create(executablePath string, options PrintingOptions) Process {
	return NewSystemProcess(executablePath, options.ArgumentString())
}

// SystemProcess runs the tool as a child process of the daemon.
type SystemProcess struct {
	path string
	args string

	mu      sync.Mutex
	state   State
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error

	closeOnce sync.Once
}

// NewSystemProcess prepares path to be run with the raw argument string args.
func NewSystemProcess(path, args string) *SystemProcess {
	return &SystemProcess{
		path: path,
		args: args,
		done: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (p *SystemProcess) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ExitErr returns the error reported by the OS when the process ended, if any.
func (p *SystemProcess) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// Start launches the process and begins reaping it in the background.
func (p *SystemProcess) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != NotStarted {
		return ErrAlreadyStarted
	}

	cmd := newCommand(p.path, p.args)
	if err := cmd.Start(); err != nil {
		return &LaunchError{Path: p.path, Err: err}
	}
	p.cmd = cmd
	p.state = Running

	go p.reap()
	return nil
}

func (p *SystemProcess) reap() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.waitErr = err
	if p.state == Running {
		p.state = Exited
	}
	p.mu.Unlock()

	close(p.done)
}

// WaitForExit waits for the process to end, the timeout to elapse or ctx to be done.
func (p *SystemProcess) WaitForExit(ctx context.Context, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	if state == NotStarted {
		return false, ErrNotStarted
	}

	select {
	case <-p.done:
		return true, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Kill forcibly terminates the process if it is still running.
func (p *SystemProcess) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Running {
		return nil
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	if err != nil {
		return err
	}
	p.state = Killed
	return nil
}

// Close kills a still running process and waits for it to be reaped.
func (p *SystemProcess) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.Kill()

		p.mu.Lock()
		started := p.cmd != nil
		p.mu.Unlock()

		if started && err == nil {
			<-p.done
		}
	})
	return err
}
