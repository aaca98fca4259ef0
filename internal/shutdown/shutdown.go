// Package shutdown cancels an in-flight discovery run on SIGINT/SIGTERM and
// runs cleanup callbacks in reverse registration order.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Callback is a function called during shutdown.
type Callback func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	Timeout         time.Duration
	Signals         []os.Signal
	OnShutdownStart func()
	OnShutdownDone  func(elapsed time.Duration, errs []error)
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Handler owns the run context and the cleanup callbacks.
type Handler struct {
	mu        sync.Mutex
	callbacks []Callback
	names     []string

	shuttingDown atomic.Bool
	done         chan struct{}
	timeout      time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	sigChan chan os.Signal

	onStart func()
	onDone  func(elapsed time.Duration, errs []error)
}

// New creates a handler whose context derives from parent. Signals are
// delivered once New returns; call Watch to act on them.
func New(parent context.Context, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = DefaultConfig().Signals
	}

	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		done:    make(chan struct{}),
		timeout: cfg.Timeout,
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
		onStart: cfg.OnShutdownStart,
		onDone:  cfg.OnShutdownDone,
	}

	signal.Notify(h.sigChan, cfg.Signals...)
	return h
}

// Register registers a shutdown callback with a name.
func (h *Handler) Register(name string, callback Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.callbacks = append(h.callbacks, callback)
	h.names = append(h.names, name)
}

// RegisterFunc registers a simple cleanup function.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(ctx context.Context) error {
		fn()
		return nil
	})
}

// Context is cancelled when shutdown begins.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// IsShuttingDown returns whether shutdown is in progress.
func (h *Handler) IsShuttingDown() bool {
	return h.shuttingDown.Load()
}

// Done is closed when shutdown completes.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Watch shuts down on the first signal. It returns once shutdown has begun
// for any reason.
func (h *Handler) Watch() {
	select {
	case <-h.sigChan:
		h.Shutdown()
	case <-h.ctx.Done():
	}
}

// Shutdown cancels the context and runs callbacks LIFO, each bounded by the
// configured timeout. Later calls are no-ops.
func (h *Handler) Shutdown() {
	if !h.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	defer close(h.done)
	defer signal.Stop(h.sigChan)

	start := time.Now()
	if h.onStart != nil {
		h.onStart()
	}

	h.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	callbacks := append([]Callback(nil), h.callbacks...)
	names := append([]string(nil), h.names...)
	h.mu.Unlock()

	var errs []error
	for i := len(callbacks) - 1; i >= 0; i-- {
		if err := execute(ctx, names[i], callbacks[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if h.onDone != nil {
		h.onDone(time.Since(start), errs)
	}
}

func execute(ctx context.Context, name string, callback Callback) error {
	done := make(chan error, 1)
	go func() {
		done <- callback(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{CallbackName: name}
	}
}

// TimeoutError is returned when a callback times out.
type TimeoutError struct {
	CallbackName string
}

func (e *TimeoutError) Error() string {
	return "shutdown callback timed out: " + e.CallbackName
}
