// Package bench runs duration-bounded worker groups against a database and
// collects per-worker operation counters.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Counters accumulate operation outcomes for a single worker. Safe for
// concurrent use.
type Counters struct {
	Reads       atomic.Int64
	ReadErrors  atomic.Int64
	Writes      atomic.Int64
	WriteErrors atomic.Int64
	LockErrors  atomic.Int64
}

// Read records a read attempt. Lock contention is tracked separately from
// other failures.
func (c *Counters) Read(n int64, err error) {
	if err == nil {
		c.Reads.Add(n)
		return
	}
	c.ReadErrors.Add(1)
	if IsLockError(err) {
		c.LockErrors.Add(1)
	}
}

// Write records a write attempt of n rows.
func (c *Counters) Write(n int64, err error) {
	if err == nil {
		c.Writes.Add(n)
		return
	}
	c.WriteErrors.Add(1)
	if IsLockError(err) {
		c.LockErrors.Add(1)
	}
}

// Snapshot freezes the counters.
func (c *Counters) Snapshot() Totals {
	return Totals{
		Reads:       c.Reads.Load(),
		ReadErrors:  c.ReadErrors.Load(),
		Writes:      c.Writes.Load(),
		WriteErrors: c.WriteErrors.Load(),
		LockErrors:  c.LockErrors.Load(),
	}
}

// Totals is a frozen, JSON-encodable view of Counters.
type Totals struct {
	Reads       int64 `json:"reads"`
	ReadErrors  int64 `json:"read_errors"`
	Writes      int64 `json:"writes"`
	WriteErrors int64 `json:"write_errors"`
	LockErrors  int64 `json:"lock_errors"`
}

// Add returns the element-wise sum of t and o.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Reads:       t.Reads + o.Reads,
		ReadErrors:  t.ReadErrors + o.ReadErrors,
		Writes:      t.Writes + o.Writes,
		WriteErrors: t.WriteErrors + o.WriteErrors,
		LockErrors:  t.LockErrors + o.LockErrors,
	}
}

// Ops is the count of completed operations.
func (t Totals) Ops() int64 { return t.Reads + t.Writes }

// Errors is the count of failed operations.
func (t Totals) Errors() int64 { return t.ReadErrors + t.WriteErrors }

// ErrorRate is errors as a percentage of all attempted operations.
func (t Totals) ErrorRate() float64 {
	attempts := t.Ops() + t.Errors()
	if attempts == 0 {
		return 0
	}
	return 100 * float64(t.Errors()) / float64(attempts)
}

// Result is the outcome of one worker's run. In process mode a child emits
// its Result as a single JSON line on stdout and the parent decodes it, so
// the wire shape must stay stable.
type Result struct {
	RunID   string        `json:"run_id"`
	Worker  string        `json:"worker"`
	Totals  Totals        `json:"totals"`
	Elapsed time.Duration `json:"elapsed"`
	Err     string        `json:"err,omitempty"`
}

func (r Result) String() string {
	if r.Err != "" {
		return fmt.Sprintf("%s: failed, %s", r.Worker, r.Err)
	}
	t := r.Totals
	if t.Reads+t.ReadErrors > 0 {
		return fmt.Sprintf("%s: %d reads (%d errors), %d writes (%d errors)",
			r.Worker, t.Reads, t.ReadErrors, t.Writes, t.WriteErrors)
	}
	return fmt.Sprintf("%s: %d writes, %d errors", r.Worker, t.Writes, t.WriteErrors)
}

// Encode writes r as one JSON line.
func (r Result) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResult parses a Result emitted by Encode.
func DecodeResult(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("decode result, %w", err)
	}
	return r, nil
}

// Worker is one independent load generator. Run loops until ctx is done and
// returns whatever it counted. A non-nil error means the worker could not do
// its job at all (failed to open the database, usually), not that individual
// operations failed.
type Worker interface {
	Name() string
	Run(ctx context.Context) (Totals, error)
}

// Run fans workers out onto goroutines, bounds them by d, and joins their
// results. It returns only after every worker has finished. A worker error
// lands in its Result rather than aborting the group.
func Run(ctx context.Context, runID string, d time.Duration, workers []Worker) []Result {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	results := make([]Result, len(workers))

	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)

		go func(i int, w Worker) {
			defer wg.Done()

			start := time.Now()
			totals, err := w.Run(ctx)

			results[i] = Result{
				RunID:   runID,
				Worker:  w.Name(),
				Totals:  totals,
				Elapsed: time.Since(start),
			}
			if err != nil {
				results[i].Err = err.Error()
			}
		}(i, w)
	}
	wg.Wait()

	return results
}

// Sum folds results into a single Totals.
func Sum(results []Result) Totals {
	var t Totals
	for _, r := range results {
		t = t.Add(r.Totals)
	}
	return t
}
