package replicate

import "time"

// etaWarmup is how long the aggregator waits before trusting the
// observed throughput enough to project an ETA.
const etaWarmup = 2 * time.Second

// ProgressAggregator folds the per-file event stream into cumulative
// run progress. Byte progress is derived from each file's percentage as
// floor(percent/100 * size) — an approximation, kept deliberately so
// progress is reproducible from the events alone. Not safe for
// concurrent use; drive it from the single goroutine consuming events.
type ProgressAggregator struct {
	totalFiles int
	totalBytes int64

	filesDone int
	bytesDone int64
	perFile   map[string]int64 // root-relative path -> bytes credited

	startedAt time.Time
	nowFunc   func() time.Time
}

// NewProgressAggregator creates an aggregator for a run whose scan pass
// reported totalFiles and totalBytes. The clock starts immediately.
func NewProgressAggregator(totalFiles int, totalBytes int64) *ProgressAggregator {
	agg := &ProgressAggregator{
		totalFiles: totalFiles,
		totalBytes: totalBytes,
		perFile:    make(map[string]int64),
		nowFunc:    time.Now,
	}
	agg.startedAt = agg.nowFunc()

	return agg
}

// Observe folds one file-progress event into the totals and returns the
// resulting overall progress. Re-observing a percentage that credits no
// new bytes leaves the totals unchanged.
func (a *ProgressAggregator) Observe(ev FileProgressEvent) OverallProgressEvent {
	credited := int64(ev.Percent) * ev.Size / 100
	previous := a.perFile[ev.Path]

	if delta := credited - previous; delta > 0 {
		a.bytesDone += delta
	}

	// Scan totals are advisory; never report beyond them.
	if a.totalBytes > 0 && a.bytesDone > a.totalBytes {
		a.bytesDone = a.totalBytes
	}

	a.perFile[ev.Path] = credited

	if ev.Percent == 100 && previous < ev.Size {
		a.filesDone++
	}

	return OverallProgressEvent{FilesDone: a.filesDone, BytesDone: a.bytesDone}
}

// FilesDone returns the number of files credited at 100 percent so far.
func (a *ProgressAggregator) FilesDone() int {
	return a.filesDone
}

// BytesDone returns the bytes credited so far.
func (a *ProgressAggregator) BytesDone() int64 {
	return a.bytesDone
}

// Elapsed returns the time since the aggregator was created.
func (a *ProgressAggregator) Elapsed() time.Duration {
	return a.nowFunc().Sub(a.startedAt)
}

// Rate returns the observed throughput in bytes per second, or zero
// before any bytes have been credited.
func (a *ProgressAggregator) Rate() float64 {
	elapsed := a.Elapsed().Seconds()
	if elapsed <= 0 || a.bytesDone <= 0 {
		return 0
	}

	return float64(a.bytesDone) / elapsed
}

// ETA projects the time remaining from the observed throughput. ok is
// false during the warmup window and whenever the rate is still zero;
// a run that has already credited every byte reports a zero ETA.
func (a *ProgressAggregator) ETA() (eta time.Duration, ok bool) {
	if a.bytesDone <= 0 || a.Elapsed() <= etaWarmup {
		return 0, false
	}

	remaining := a.totalBytes - a.bytesDone
	if remaining <= 0 {
		return 0, true
	}

	rate := a.Rate()
	if rate <= 0 {
		return 0, false
	}

	return time.Duration(float64(remaining) / rate * float64(time.Second)), true
}
