package compute

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap/zaptest"
)

func TestAllocateAccounting(t *testing.T) {
	d := NewDevice(Options{Workers: 2, MemoryLimit: 1024}, zaptest.NewLogger(t))

	a, err := Allocate[float64](d, "Particles", 64)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if a.Bytes() != 512 || d.Allocated() != 512 || a.Len() != 64 {
		t.Fatalf("unexpected accounting: bytes=%d allocated=%d len=%d", a.Bytes(), d.Allocated(), a.Len())
	}

	_, err = Allocate[float64](d, "VoxelizedSolid", 100)
	if err == nil {
		t.Fatal("expected resource error")
	}
	if !errors.Is(err, ErrResource) {
		t.Fatalf("error does not wrap ErrResource: %v", err)
	}
	if !strings.Contains(err.Error(), "VoxelizedSolid") || !strings.Contains(err.Error(), "800") {
		t.Fatalf("error must name the component and size: %v", err)
	}

	a.Release()
	a.Release()
	if d.Allocated() != 0 {
		t.Fatalf("expected all memory back, got %d", d.Allocated())
	}
	if _, err := Allocate[float64](d, "VoxelizedSolid", 100); err != nil {
		t.Fatalf("allocation after release: %v", err)
	}
}

func TestAllocateUnlimited(t *testing.T) {
	d := NewDevice(Options{}, nil)
	if d.Workers() < 1 {
		t.Fatalf("expected at least one worker")
	}
	b, err := Allocate[int32](d, "Labels", 1<<20)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if b.Bytes() != 4<<20 {
		t.Fatalf("unexpected size %d", b.Bytes())
	}
	if _, err := Allocate[int32](d, "Labels", -1); err == nil {
		t.Fatalf("expected error for negative count")
	}
}

func TestDispatchVisitsEveryItemOnce(t *testing.T) {
	d := NewDevice(Options{Workers: 4}, zaptest.NewLogger(t))
	buf, err := Allocate[int32](d, "Counts", 1001)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	seen := buf.Device()
	var maxWid atomic.Int64
	d.Dispatch("count", buf.Len(), func(wid, i int) {
		seen[i]++
		for {
			cur := maxWid.Load()
			if int64(wid) <= cur || maxWid.CompareAndSwap(cur, int64(wid)) {
				break
			}
		}
	})
	data, unmap := buf.Map()
	defer unmap()
	for i, v := range data {
		if v != 1 {
			t.Fatalf("item %d visited %d times", i, v)
		}
	}
	if maxWid.Load() >= 4 {
		t.Fatalf("worker id out of range: %d", maxWid.Load())
	}
	if _, calls := d.KernelTime("count"); calls != 1 {
		t.Fatalf("expected one timed call, got %d", calls)
	}
	d.LogTimers()
}

func TestDispatchWaitsForHostMapping(t *testing.T) {
	d := NewDevice(Options{Workers: 2}, zaptest.NewLogger(t))
	buf, err := Allocate[float64](d, "Transform", 16)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	_, unmap := buf.Map()

	var ran atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Dispatch("noop", 4, func(wid, i int) { ran.Store(true) })
	}()

	time.Sleep(20 * time.Millisecond)
	if ran.Load() {
		t.Fatal("kernel ran while a buffer was mapped")
	}
	unmap()
	unmap()
	wg.Wait()
	if !ran.Load() {
		t.Fatal("kernel never ran")
	}
}

func TestDispatchEmpty(t *testing.T) {
	d := NewDevice(Options{Workers: 3}, nil)
	d.Dispatch("empty", 0, func(wid, i int) { t.Fatal("must not be called") })
	if _, calls := d.KernelTime("empty"); calls != 0 {
		t.Fatalf("empty dispatch must not be timed")
	}
}
