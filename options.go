package simkernel

// kernelOptions holds resolved Kernel configuration.
type kernelOptions struct {
	workerCount      int
	logger           Logger
	metricsEnabled   bool
	strictFutureMode bool
	onOverload       func(pendingReady int)
}

// KernelOption configures a [Kernel] at construction time.
type KernelOption interface {
	applyKernel(*kernelOptions) error
}

type kernelOptionImpl struct {
	apply func(*kernelOptions) error
}

func (o *kernelOptionImpl) applyKernel(opts *kernelOptions) error {
	return o.apply(opts)
}

// WithWorkerCount selects the parallel context factory, bounding concurrent
// actor execution within a round to n goroutines. n <= 1 selects the serial
// context factory instead (actors resumed one at a time on the kernel
// goroutine's calling thread).
func WithWorkerCount(n int) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.workerCount = n
		return nil
	}}
}

// WithLogger sets the [Logger] the kernel reports diagnostics through.
// Defaults to a no-op logger.
func WithLogger(l Logger) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.logger = l
		return nil
	}}
}

// WithMetrics enables round/event/actor bookkeeping on the kernel, readable
// via [Kernel.Metrics]. Disabled by default to keep the hot path allocation
// free.
func WithMetrics(enabled bool) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithStrictMicrotaskOrdering, when enabled, fully drains the kernel future
// ready list after every single actor resumption rather than batching it
// once per round. Kernel futures never run continuations inline either
// way. Draining after each actor can change the order in which actors
// unblocked during the same round are queued for the next one, and so the
// order in which they are resumed.
func WithStrictMicrotaskOrdering(enabled bool) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.strictFutureMode = enabled
		return nil
	}}
}

// WithOnOverload registers a callback invoked while the kernel drains its
// ready list: each time a continuation is taken off the list and more than
// an internal threshold (1024) of continuations are still queued, as a hook
// for applying backpressure or raising an alert. It receives the pending
// ready list length.
func WithOnOverload(f func(pendingReady int)) KernelOption {
	return &kernelOptionImpl{func(opts *kernelOptions) error {
		opts.onOverload = f
		return nil
	}}
}

func resolveKernelOptions(opts []KernelOption) (*kernelOptions, error) {
	cfg := &kernelOptions{
		workerCount: 1,
		logger:      nopLogger{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyKernel(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
