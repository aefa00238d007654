package sumatra

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// UtilName is the file name of the SumatraPDF executable.
	UtilName = "SumatraPDF.exe"
	// DefaultPrintTimeout applies when a caller passes no timeout.
	DefaultPrintTimeout = time.Minute
)

// Outcome tells how a print that did not fail ended.
type Outcome int

const (
	// OutcomeCompleted means the tool exited on its own within the timeout.
	OutcomeCompleted Outcome = iota
	// OutcomeTimedOut means the tool was killed after the timeout elapsed.
	OutcomeTimedOut
)

func (o Outcome) String() string {
	if o == OutcomeTimedOut {
		return "timed_out"
	}
	return "completed"
}

// DefaultExecutablePath returns SumatraPDF.exe next to the running binary.
func DefaultExecutablePath() string {
	exe, err := os.Executable()
	if err != nil {
		return UtilName
	}
	return filepath.Join(filepath.Dir(exe), UtilName)
}

// Option configures a Printer.
type Option func(*Printer)

// WithProcessFactory replaces the os/exec backed factory. nil keeps the default.
func WithProcessFactory(f ProcessFactory) Option {
	return func(p *Printer) {
		if f != nil {
			p.factory = f
		}
	}
}

// WithExecutablePath overrides the location of SumatraPDF. Empty keeps the default.
func WithExecutablePath(path string) Option {
	return func(p *Printer) {
		if path != "" {
			p.exePath = path
		}
	}
}

// WithDefaultTimeout changes the timeout used when a call passes none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(p *Printer) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// Printer runs one SumatraPDF process per print and never more than its
// capacity at the same time.
type Printer struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64

	factory ProcessFactory
	exePath string
	timeout time.Duration
}

// NewPrinter creates a printer that allows up to maxConcurrent prints at once.
func NewPrinter(maxConcurrent int, opts ...Option) (*Printer, error) {
	if maxConcurrent <= 0 {
		return nil, ErrInvalidConcurrency
	}

	p := &Printer{
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		capacity: int64(maxConcurrent),
		factory:  SystemProcessFactory{},
		timeout:  DefaultPrintTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.exePath == "" {
		p.exePath = DefaultExecutablePath()
	}
	return p, nil
}

// NewDefaultPrinter creates a printer that prints one document at a time.
func NewDefaultPrinter(opts ...Option) *Printer {
	p, _ := NewPrinter(1, opts...)
	return p
}

// ExecutablePath returns the SumatraPDF path used for new processes.
func (p *Printer) ExecutablePath() string { return p.exePath }

// Capacity returns the maximum number of concurrent prints.
func (p *Printer) Capacity() int { return int(p.capacity) }

// InFlight returns the number of prints currently holding a slot.
func (p *Printer) InFlight() int { return int(p.inFlight.Load()) }

// Available returns the number of free slots.
func (p *Printer) Available() int { return int(p.capacity - p.inFlight.Load()) }

// Print prints options and waits for SumatraPDF to finish. A print that
// exceeds timeout is killed and still reported as success; use Run to tell
// the two apart. timeout <= 0 selects the printer's default.
func (p *Printer) Print(ctx context.Context, options PrintingOptions, timeout time.Duration) error {
	_, err := p.Run(ctx, options, timeout)
	return err
}

// Run is Print that also reports whether the process had to be killed.
func (p *Printer) Run(ctx context.Context, options PrintingOptions, timeout time.Duration) (Outcome, error) {
	if timeout <= 0 {
		timeout = p.timeout
	}

	if err := p.acquire(ctx); err != nil {
		return OutcomeCompleted, err
	}
	defer p.release()

	proc := p.factory.Create(p.exePath, options)
	defer func() {
		if err := proc.Close(); err != nil {
			log.Printf("[SUMATRA] ⚠️ Error releasing process: %v", err)
		}
	}()

	if err := proc.Start(); err != nil {
		var launchErr *LaunchError
		if errors.As(err, &launchErr) {
			return OutcomeCompleted, err
		}
		return OutcomeCompleted, &LaunchError{Path: p.exePath, Err: err}
	}

	exited, err := proc.WaitForExit(ctx, timeout)
	if err != nil {
		p.kill(proc)
		return OutcomeCompleted, err
	}
	if !exited {
		log.Printf("[SUMATRA] ⏱️ Print of %q exceeded %v, killing process", options.FilePath(), timeout)
		p.kill(proc)
		return OutcomeTimedOut, nil
	}
	return OutcomeCompleted, nil
}

func (p *Printer) acquire(ctx context.Context) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.inFlight.Add(1)
	return nil
}

func (p *Printer) release() {
	p.inFlight.Add(-1)
	p.sem.Release(1)
}

func (p *Printer) kill(proc Process) {
	if err := proc.Kill(); err != nil {
		log.Printf("[SUMATRA] ⚠️ Error killing process: %v", err)
	}
}
