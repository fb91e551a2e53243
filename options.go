package blockpool

const (
	// DefaultBlockSize is the number of slots per block.
	DefaultBlockSize = 1024

	// DefaultMaxBlocks limits how far a pool may grow.
	DefaultMaxBlocks = 65536
)

type options struct {
	blockSize        int
	maxBlocks        int
	initialCapacity  int
	memoryLimit      int64
	logger           *Logger
	metricsCollector MetricsCollector
	onDestroyError   func(error)
}

func defaultOptions() options {
	return options{
		blockSize:        DefaultBlockSize,
		maxBlocks:        DefaultMaxBlocks,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		onDestroyError:   RethrowDestructionError,
	}
}

// Option configures a pool at construction.
type Option func(*options)

// WithBlockSize sets the number of slots per block.
//
// Blocks are the unit of growth: a pool reserves blockSize slots at a time and
// never releases them until it is closed. Values <= 0 select DefaultBlockSize.
func WithBlockSize(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = DefaultBlockSize
		}
		o.blockSize = n
	}
}

// WithMaxBlocks caps the number of blocks. Growth past the cap fails with
// ErrPoolExhausted. Values <= 0 select DefaultMaxBlocks.
func WithMaxBlocks(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = DefaultMaxBlocks
		}
		o.maxBlocks = n
	}
}

// WithInitialCapacity reserves room for n objects when the pool is created.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		o.initialCapacity = n
	}
}

// WithMemoryLimit bounds the bytes a pool may reserve for blocks.
// Growth that would exceed the limit fails with ErrMemoryLimitExceeded.
// A limit <= 0 disables the check.
//
// Example:
//
//	p := blockpool.New[Particle](blockpool.WithMemoryLimit(256 << 20))
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithLogger configures structured logging for pool events.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := blockpool.NewJSONLogger(slog.LevelDebug)
//	p := blockpool.New[Particle](blockpool.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector configures a metrics collector for pool operations.
// Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithDestructionErrorCallback installs the handler for destruction failures
// that cannot be returned to a caller. See Pool.SetDestructionErrorCallback.
func WithDestructionErrorCallback(f func(error)) Option {
	return func(o *options) {
		if f == nil {
			f = RethrowDestructionError
		}
		o.onDestroyError = f
	}
}

// RethrowDestructionError is the default destruction error callback. It panics
// with the error, which terminates the program unless the caller recovers.
func RethrowDestructionError(err error) {
	panic(err)
}
