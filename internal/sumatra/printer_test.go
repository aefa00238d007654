package sumatra

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcess is a scripted Process. When exit is non-nil WaitForExit blocks
// until it is closed, the timeout elapses or ctx is done.
type fakeProcess struct {
	startErr   error
	neverExits bool
	exit       chan struct{}
	killErr    error

	starts atomic.Int32
	waits  atomic.Int32
	kills  atomic.Int32
	closes atomic.Int32
}

func (f *fakeProcess) Start() error {
	f.starts.Add(1)
	return f.startErr
}

func (f *fakeProcess) WaitForExit(ctx context.Context, timeout time.Duration) (bool, error) {
	f.waits.Add(1)
	if f.neverExits {
		return false, nil
	}
	if f.exit == nil {
		return true, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.exit:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (f *fakeProcess) Kill() error {
	f.kills.Add(1)
	return f.killErr
}

func (f *fakeProcess) Close() error {
	f.closes.Add(1)
	return nil
}

// fakeFactory hands out processes built by newProc and remembers them.
type fakeFactory struct {
	mu      sync.Mutex
	newProc func() *fakeProcess
	created []*fakeProcess
	paths   []string
	options []PrintingOptions
}

func (f *fakeFactory) Create(path string, options PrintingOptions) Process {
	f.mu.Lock()
	defer f.mu.Unlock()
	proc := f.newProc()
	f.created = append(f.created, proc)
	f.paths = append(f.paths, path)
	f.options = append(f.options, options)
	return proc
}

func (f *fakeFactory) processes() []*fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeProcess(nil), f.created...)
}

func (f *fakeFactory) startedCount() int {
	n := 0
	for _, p := range f.processes() {
		n += int(p.starts.Load())
	}
	return n
}

func TestNewPrinter_RejectsNonPositiveConcurrency(t *testing.T) {
	for _, n := range []int{0, -1, -10} {
		p, err := NewPrinter(n)
		assert.Nil(t, p)
		assert.ErrorIs(t, err, ErrInvalidConcurrency)
	}
}

func TestNewDefaultPrinter(t *testing.T) {
	p := NewDefaultPrinter()
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Capacity())
	assert.Equal(t, 1, p.Available())
	assert.Equal(t, UtilName, filepath.Base(p.ExecutablePath()))
}

func TestPrinter_PrintCompletes(t *testing.T) {
	factory := &fakeFactory{newProc: func() *fakeProcess { return &fakeProcess{} }}
	p, err := NewPrinter(2, WithProcessFactory(factory), WithExecutablePath(`C:\tools\SumatraPDF.exe`))
	require.NoError(t, err)

	options := NewPrintingOptions("P1", "a.pdf").WithCopies(1)
	outcome, err := p.Run(context.Background(), options, time.Second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	procs := factory.processes()
	require.Len(t, procs, 1)
	assert.Equal(t, int32(1), procs[0].starts.Load())
	assert.Equal(t, int32(0), procs[0].kills.Load())
	assert.Equal(t, int32(1), procs[0].closes.Load())
	assert.Equal(t, `C:\tools\SumatraPDF.exe`, factory.paths[0])
	assert.Equal(t, options, factory.options[0])
	assert.Equal(t, 2, p.Available())
}

func TestPrinter_TimeoutKillsOnce(t *testing.T) {
	factory := &fakeFactory{newProc: func() *fakeProcess { return &fakeProcess{neverExits: true} }}
	p, err := NewPrinter(1, WithProcessFactory(factory))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- p.Print(context.Background(), NewPrintingOptions("", "slow.pdf"), 10*time.Millisecond)
	}()

	select {
	case err := <-done:
		assert.NoError(t, err, "a timed out print still completes normally")
	case <-time.After(2 * time.Second):
		t.Fatal("Print did not return after timeout")
	}

	procs := factory.processes()
	require.Len(t, procs, 1)
	assert.Equal(t, int32(1), procs[0].kills.Load())
	assert.Equal(t, int32(1), procs[0].closes.Load())
	assert.Equal(t, 1, p.Available())
}

func TestPrinter_RunReportsTimeout(t *testing.T) {
	factory := &fakeFactory{newProc: func() *fakeProcess { return &fakeProcess{neverExits: true} }}
	p, err := NewPrinter(1, WithProcessFactory(factory))
	require.NoError(t, err)

	outcome, err := p.Run(context.Background(), NewPrintingOptions("", "slow.pdf"), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Equal(t, "timed_out", outcome.String())
}

func TestPrinter_DefaultTimeoutIsUsed(t *testing.T) {
	proc := &fakeProcess{exit: make(chan struct{})}
	factory := &fakeFactory{newProc: func() *fakeProcess { return proc }}
	p, err := NewPrinter(1, WithProcessFactory(factory), WithDefaultTimeout(20*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	outcome, err := p.Run(context.Background(), NewPrintingOptions("", "a.pdf"), 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int32(1), proc.kills.Load())
}

func TestPrinter_LaunchErrorReleasesPermit(t *testing.T) {
	launchErr := &LaunchError{Path: "missing.exe", Err: errors.New("file not found")}
	factory := &fakeFactory{newProc: func() *fakeProcess { return &fakeProcess{startErr: launchErr} }}
	p, err := NewPrinter(1, WithProcessFactory(factory))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := p.Print(context.Background(), NewPrintingOptions("", "a.pdf"), time.Second)
		var got *LaunchError
		require.ErrorAs(t, err, &got)
		assert.Equal(t, "missing.exe", got.Path)
		assert.Equal(t, 1, p.Available(), "permit must be returned after a failed start")
	}

	for _, proc := range factory.processes() {
		assert.Equal(t, int32(0), proc.waits.Load())
		assert.Equal(t, int32(1), proc.closes.Load())
	}
}

func TestPrinter_StartErrorIsWrappedAsLaunchError(t *testing.T) {
	plain := errors.New("access denied")
	factory := &fakeFactory{newProc: func() *fakeProcess { return &fakeProcess{startErr: plain} }}
	p, err := NewPrinter(1, WithProcessFactory(factory), WithExecutablePath("tool.exe"))
	require.NoError(t, err)

	err = p.Print(context.Background(), NewPrintingOptions("", "a.pdf"), time.Second)
	var launchErr *LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Equal(t, "tool.exe", launchErr.Path)
	assert.ErrorIs(t, err, plain)
}

func TestPrinter_KillErrorIsNotSurfaced(t *testing.T) {
	factory := &fakeFactory{newProc: func() *fakeProcess {
		return &fakeProcess{neverExits: true, killErr: errors.New("already gone")}
	}}
	p, err := NewPrinter(1, WithProcessFactory(factory))
	require.NoError(t, err)

	outcome, err := p.Run(context.Background(), NewPrintingOptions("", "a.pdf"), time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Equal(t, 1, p.Available())
}

func TestPrinter_ConcurrencyBound(t *testing.T) {
	const capacity = 2

	exit := make(chan struct{})
	factory := &fakeFactory{newProc: func() *fakeProcess { return &fakeProcess{exit: exit} }}
	p, err := NewPrinter(capacity, WithProcessFactory(factory))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < capacity+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Print(context.Background(), NewPrintingOptions("", "a.pdf"), time.Minute)
		}()
	}

	require.Eventually(t, func() bool { return factory.startedCount() == capacity },
		2*time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return factory.startedCount() > capacity },
		100*time.Millisecond, 10*time.Millisecond, "extra call must wait for a free slot")
	assert.Equal(t, 0, p.Available())
	assert.Equal(t, capacity, p.InFlight())

	close(exit)

	require.Eventually(t, func() bool { return factory.startedCount() == capacity+1 },
		2*time.Second, 5*time.Millisecond)
	wg.Wait()
	assert.Equal(t, capacity, p.Available())
}

func TestPrinter_CancelWhileWaitingForSlot(t *testing.T) {
	exit := make(chan struct{})
	defer close(exit)
	factory := &fakeFactory{newProc: func() *fakeProcess { return &fakeProcess{exit: exit} }}
	p, err := NewPrinter(1, WithProcessFactory(factory))
	require.NoError(t, err)

	go func() { _ = p.Print(context.Background(), NewPrintingOptions("", "first.pdf"), time.Minute) }()
	require.Eventually(t, func() bool { return p.Available() == 0 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = p.Print(ctx, NewPrintingOptions("", "second.pdf"), time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, factory.processes(), 1, "no process is created without a slot")
}

func TestPrinter_CancelWhileRunningKills(t *testing.T) {
	proc := &fakeProcess{exit: make(chan struct{})}
	factory := &fakeFactory{newProc: func() *fakeProcess { return proc }}
	p, err := NewPrinter(1, WithProcessFactory(factory))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err = p.Print(ctx, NewPrintingOptions("", "a.pdf"), time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), proc.kills.Load())
	assert.Equal(t, int32(1), proc.closes.Load())
	assert.Equal(t, 1, p.Available())
}

func TestPrinter_PermitReleasedOnPanic(t *testing.T) {
	factory := ProcessFactoryFunc(func(string, PrintingOptions) Process {
		panic("factory exploded")
	})
	p, err := NewPrinter(1, WithProcessFactory(factory))
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = p.Print(context.Background(), NewPrintingOptions("", "a.pdf"), time.Second)
	})
	assert.Equal(t, 1, p.Available())
}

func TestPrinter_PrintFileDelegates(t *testing.T) {
	factory := &fakeFactory{newProc: func() *fakeProcess { return &fakeProcess{} }}
	p, err := NewPrinter(1, WithProcessFactory(factory))
	require.NoError(t, err)

	//nolint:staticcheck
	require.NoError(t, p.PrintFile(context.Background(), "doc.pdf", "P1", 0))

	require.Len(t, factory.options, 1)
	assert.Equal(t, NewPrintingOptions("P1", "doc.pdf"), factory.options[0])
}
