// Package compute is the parallel execution substrate used by the tracking kernels.
// It accounts device memory, hands out typed buffers with scoped host access and
// dispatches one kernel invocation per item over a fixed pool of workers.
package compute

import (
	"runtime"
	"sort"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ErrResource marks an allocation the device could not serve.
var ErrResource = errors.New("resource exhaustion")

// Options sizes a Device.
type Options struct {
	Workers     int   // 0 means runtime.NumCPU()
	MemoryLimit int64 // bytes, 0 means unlimited
}

// Device is a CPU compute device. Kernels dispatched on it and host mappings of
// its buffers are mutually exclusive: a Dispatch waits for every mapping to be
// released and no mapping is granted while a Dispatch is in flight.
type Device struct {
	log       *zap.Logger
	workers   int
	limit     int64
	allocated atomic.Int64
	host      sync.RWMutex

	timersMu sync.Mutex
	timers   map[string]*kernelTimer
}

type kernelTimer struct {
	calls   int
	items   int64
	elapsed time.Duration
}

// NewDevice builds a device. A nil logger is replaced by a no-op one.
func NewDevice(opts Options, log *zap.Logger) *Device {
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}
	d := &Device{
		log:     log.Named("compute"),
		workers: workers,
		limit:   opts.MemoryLimit,
		timers:  make(map[string]*kernelTimer),
	}
	d.log.Debug("device ready", zap.Int("workers", workers), zap.Int64("memory_limit", opts.MemoryLimit))
	return d
}

// Workers returns the number of parallel workers, i.e. the range of wid passed to kernels.
func (d *Device) Workers() int { return d.workers }

// Allocated returns the bytes currently held by live buffers.
func (d *Device) Allocated() int64 { return d.allocated.Load() }

func (d *Device) reserve(component string, bytes int64) error {
	for {
		cur := d.allocated.Load()
		if d.limit > 0 && cur+bytes > d.limit {
			return errors.Wrapf(ErrResource, "%s::Allocate: requested %d bytes with %d of %d in use",
				component, bytes, cur, d.limit)
		}
		if d.allocated.CompareAndSwap(cur, cur+bytes) {
			return nil
		}
	}
}

// HostAccess grants host access to device memory until the returned release
// func is called. Release is idempotent.
func (d *Device) HostAccess() func() {
	d.host.RLock()
	var once sync.Once
	return func() { once.Do(d.host.RUnlock) }
}

// Dispatch runs fn once for every i in [0, n) and blocks until all invocations
// returned. Items are split in contiguous chunks, one per worker; wid identifies
// the worker and is stable for a chunk. fn must not call Dispatch or HostAccess.
func (d *Device) Dispatch(kernel string, n int, fn func(wid, i int)) {
	if n <= 0 {
		return
	}
	d.host.Lock()
	defer d.host.Unlock()

	start := time.Now()
	workers := d.workers
	if workers > n {
		workers = n
	}
	per, rem := n/workers, n%workers
	var wg sync.WaitGroup
	wg.Add(workers)
	begin := 0
	for w := 0; w < workers; w++ {
		cnt := per
		if w < rem {
			cnt++
		}
		go func(wid, from, to int) {
			defer wg.Done()
			for i := from; i < to; i++ {
				fn(wid, i)
			}
		}(w, begin, begin+cnt)
		begin += cnt
	}
	wg.Wait()
	d.record(kernel, n, time.Since(start))
}

func (d *Device) record(kernel string, n int, elapsed time.Duration) {
	d.timersMu.Lock()
	defer d.timersMu.Unlock()
	t, ok := d.timers[kernel]
	if !ok {
		t = &kernelTimer{}
		d.timers[kernel] = t
	}
	t.calls++
	t.items += int64(n)
	t.elapsed += elapsed
}

// KernelTime returns the accumulated elapsed time and the number of dispatches of a kernel.
func (d *Device) KernelTime(kernel string) (time.Duration, int) {
	d.timersMu.Lock()
	defer d.timersMu.Unlock()
	if t, ok := d.timers[kernel]; ok {
		return t.elapsed, t.calls
	}
	return 0, 0
}

// LogTimers writes one debug line per kernel, sorted by name.
func (d *Device) LogTimers() {
	d.timersMu.Lock()
	defer d.timersMu.Unlock()
	names := lo.Keys(d.timers)
	sort.Strings(names)
	for _, name := range names {
		t := d.timers[name]
		d.log.Debug("kernel timer",
			zap.String("kernel", name),
			zap.Int("calls", t.calls),
			zap.Int64("items", t.items),
			zap.Duration("elapsed", t.elapsed))
	}
}

// Buffer is a typed allocation on a Device.
type Buffer[T any] struct {
	dev       *Device
	component string
	data      []T
	bytes     int64
	released  atomic.Bool
}

// Allocate reserves n elements of T for component. The error wraps ErrResource
// and names the component and the requested size when the memory limit is hit.
func Allocate[T any](d *Device, component string, n int) (*Buffer[T], error) {
	if n < 0 {
		return nil, errors.Errorf("%s::Allocate: negative element count %d", component, n)
	}
	var zero T
	bytes := int64(n) * int64(unsafe.Sizeof(zero))
	if err := d.reserve(component, bytes); err != nil {
		return nil, err
	}
	d.log.Debug("buffer allocated", zap.String("component", component), zap.Int("elements", n), zap.Int64("bytes", bytes))
	return &Buffer[T]{dev: d, component: component, data: make([]T, n), bytes: bytes}, nil
}

// Map grants host access to the buffer content until unmap is called.
// unmap is idempotent, so it is safe to both defer it and call it early.
func (b *Buffer[T]) Map() (data []T, unmap func()) {
	release := b.dev.HostAccess()
	return b.data, release
}

// Device returns the device-side view. It is only meant to be read or written
// from kernels running under Dispatch.
func (b *Buffer[T]) Device() []T { return b.data }

// Len returns the number of elements.
func (b *Buffer[T]) Len() int { return len(b.data) }

// Bytes returns the accounted size.
func (b *Buffer[T]) Bytes() int64 { return b.bytes }

// Release returns the buffer memory to the device. Safe to call more than once.
func (b *Buffer[T]) Release() {
	if b.released.CompareAndSwap(false, true) {
		b.dev.allocated.Sub(b.bytes)
		b.data = nil
	}
}

// Releaser is implemented by every Buffer instantiation.
type Releaser interface {
	Release()
	Bytes() int64
}
