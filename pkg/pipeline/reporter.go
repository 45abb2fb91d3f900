package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/cwhuang/segscribe/pkg/logger"
)

// Reporter periodically logs transcription progress. Counters are updated
// from the segment loop and read from the reporter goroutine; the reporter
// is advisory only and never blocks processing.
type Reporter struct {
	interval  time.Duration
	startTime time.Time

	total  atomic.Int64
	done   atomic.Int64
	failed atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReporter creates a reporter that logs every interval.
func NewReporter(interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reporter{interval: interval}
}

// SetTotal records the planned segment count.
func (r *Reporter) SetTotal(n int) {
	r.total.Store(int64(n))
}

// SegmentDone marks one segment as completed.
func (r *Reporter) SegmentDone() {
	r.done.Add(1)
}

// SegmentFailed marks one segment as failed and skipped.
func (r *Reporter) SegmentFailed() {
	r.failed.Add(1)
}

// Progress returns the current counter values.
func (r *Reporter) Progress() (done, failed, total int64) {
	return r.done.Load(), r.failed.Load(), r.total.Load()
}

// Start launches the reporting goroutine. Stop must be called to end it.
func (r *Reporter) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.startTime = time.Now()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.report()
			}
		}
	}()
}

// Stop ends the reporting goroutine and logs a final summary.
func (r *Reporter) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.report()
}

func (r *Reporter) report() {
	log := logger.WithComponent("reporter")

	done := r.done.Load()
	failed := r.failed.Load()
	total := r.total.Load()

	percent := 0.0
	if total > 0 {
		percent = float64(done+failed) / float64(total) * 100
	}

	event := log.Info().
		Int64("done", done).
		Int64("failed", failed).
		Int64("total", total).
		Float64("percent", percent).
		Dur("elapsed", time.Since(r.startTime).Round(time.Second))

	if vm, err := mem.VirtualMemory(); err == nil {
		event = event.Float64("memory_percent", vm.UsedPercent)
		if vm.UsedPercent > 90 {
			log.Warn().Float64("memory_percent", vm.UsedPercent).Msg("Memory usage critical")
		}
	}

	event.Msg("Transcription progress")
}

// WarnIfMemoryTight samples system memory and warns above the given
// percentage threshold. Used after backend startup and inside the segment
// loop.
func WarnIfMemoryTight(thresholdPercent float64) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	if vm.UsedPercent > thresholdPercent {
		logger.WithComponent("reporter").Warn().
			Float64("memory_percent", vm.UsedPercent).
			Float64("threshold", thresholdPercent).
			Msg("High memory usage")
	}
}
