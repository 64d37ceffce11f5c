// Package engine drives the attack run lifecycle: lock acquisition, the
// account safety check, technique selection, warmup, dwell, detonation and
// the post-hoc cleanup path. Every state transition is persisted to the run
// record store before the next step proceeds, so a run's outcome is always
// inspectable even if this process dies immediately after.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/opsrange/redrill/internal/history"
	"github.com/opsrange/redrill/internal/lockfile"
	"github.com/opsrange/redrill/internal/runstore"
	"github.com/opsrange/redrill/internal/selector"
	"github.com/opsrange/redrill/internal/stratus"
)

// RunParams are the caller-supplied parameters for one run.
type RunParams struct {
	// Account is the expected AWS account ID. The run aborts before any
	// external mutation if the actual account differs.
	Account string

	// Region is the target region, bound into every tool invocation.
	Region string

	// Mode decides whether detonation artifacts are left behind (train)
	// or cleaned up immediately (validate).
	Mode runstore.Mode

	// Tactic optionally narrows the technique catalog.
	Tactic string

	// DwellMin and DwellMax bound the random delay, in seconds, between
	// warmup and detonation. Both zero means no dwell.
	DwellMin int
	DwellMax int

	// AllowRepeat disables the recently-used exclusion.
	AllowRepeat bool

	// AvoidLastN is the size of the recency exclusion window.
	AvoidLastN int
}

// Options configures an Engine. Lock, Records, History and Tool are
// required; the rest default to production behavior.
type Options struct {
	Lock    *lockfile.Lock
	Records *runstore.Store
	History *history.Store
	Tool    stratus.Client

	// HistoryMax bounds the persisted technique history.
	// Defaults to history.DefaultMaxEntries.
	HistoryMax int

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now, Rand and Sleep are injection points for tests.
	Now   func() time.Time
	Rand  selector.Picker
	Sleep func(time.Duration)

	// OnStart, if set, is called once the initial run record has been
	// persisted, before any external mutation. The CLI uses it to hand
	// the operator the run ID while the technique stays hidden.
	OnStart func(*runstore.Record)
}

// Engine orchestrates runs. One Engine serves one invocation of the tool;
// cross-process exclusivity comes from the lock, not from this struct.
type Engine struct {
	lock       *lockfile.Lock
	records    *runstore.Store
	history    *history.Store
	tool       stratus.Client
	historyMax int
	log        *slog.Logger
	now        func() time.Time
	rng        selector.Picker
	sleep      func(time.Duration)
	onStart    func(*runstore.Record)
}

// New creates an Engine from opts, filling in defaults.
func New(opts Options) *Engine {
	e := &Engine{
		lock:       opts.Lock,
		records:    opts.Records,
		history:    opts.History,
		tool:       opts.Tool,
		historyMax: opts.HistoryMax,
		log:        opts.Logger,
		now:        opts.Now,
		rng:        opts.Rand,
		sleep:      opts.Sleep,
		onStart:    opts.OnStart,
	}
	if e.historyMax <= 0 {
		e.historyMax = history.DefaultMaxEntries
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(os.Getpid())))
	}
	if e.sleep == nil {
		e.sleep = time.Sleep
	}
	return e
}

// Run executes one full attack run. On failure after the record exists, the
// returned record carries the failed state that was persisted; before that,
// the record is nil and nothing durable was written.
//
// The lock is released on every exit path.
func (e *Engine) Run(ctx context.Context, p RunParams) (*runstore.Record, error) {
	ok, err := e.lock.Acquire()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !ok {
		pid, _ := e.lock.HolderPID()
		return nil, NewBusyError(pid)
	}
	defer e.lock.Release()

	// Safety check: fail before any external mutation.
	id, err := e.tool.Identity(ctx)
	if err != nil {
		return nil, &RunError{Code: ErrCodeExternalTool, Message: "querying caller identity", Err: err}
	}
	if id.Account != p.Account {
		return nil, NewSafetyCheckError(id.Account, p.Account)
	}

	techniques, err := e.tool.ListTechniques(ctx, p.Tactic)
	if err != nil {
		return nil, &RunError{Code: ErrCodeExternalTool, Message: "listing techniques", Err: err}
	}
	if len(techniques) == 0 {
		return nil, NewCatalogEmptyError(p.Tactic)
	}

	hist := e.loadHistory(ctx)
	technique, err := selector.Select(e.rng, techniques, hist, !p.AllowRepeat, p.AvoidLastN)
	if err != nil {
		return nil, NewCatalogEmptyError(p.Tactic)
	}

	now := e.now().UTC()
	rec := runstore.New(runstore.NewRunID(now), technique.ID, id.Account, p.Region, p.Mode, p.Tactic, now)
	if err := e.records.Save(rec); err != nil {
		return nil, fmt.Errorf("saving run record: %w", err)
	}
	e.log.Info("run started", "run_id", rec.RunID, "mode", rec.Mode, "region", rec.Region)
	if e.onStart != nil {
		e.onStart(rec)
	}

	// From here every failure is captured into the record before being
	// surfaced.
	if err := e.detonate(ctx, rec, p); err != nil {
		return rec, err
	}
	return rec, nil
}

// detonate runs warmup, dwell, detonation and the history update against an
// existing record.
func (e *Engine) detonate(ctx context.Context, rec *runstore.Record, p RunParams) error {
	if err := e.tool.Warmup(ctx, rec.Technique, rec.Region); err != nil {
		e.fail(rec, fmt.Sprintf("Warmup failed: %v", err))
		return &RunError{Code: ErrCodeExternalTool, Message: "warmup failed", RunID: rec.RunID, Err: err}
	}
	if err := e.advance(rec, runstore.StatusWarmupComplete); err != nil {
		return err
	}
	e.log.Info("warmup complete", "run_id", rec.RunID)

	if d := e.dwell(p); d > 0 {
		e.log.Info("dwelling before detonation", "run_id", rec.RunID, "seconds", int(d.Seconds()))
		e.sleep(d)
	}

	requestCleanup := rec.Mode == runstore.ModeValidate
	if err := e.tool.Detonate(ctx, rec.Technique, requestCleanup, rec.Region); err != nil {
		e.fail(rec, fmt.Sprintf("Detonate failed: %v", err))
		return &RunError{Code: ErrCodeExternalTool, Message: "detonate failed", RunID: rec.RunID, Err: err}
	}
	now := e.now().UTC()
	if err := rec.Advance(runstore.StatusDetonated, now); err != nil {
		return e.failUnexpected(rec, err)
	}
	if requestCleanup {
		// Cleanup happened inside the detonate call; cleaned_at is the
		// detonation completion time.
		if err := rec.Advance(runstore.StatusCleaned, now); err != nil {
			return e.failUnexpected(rec, err)
		}
	}
	if err := e.records.Save(rec); err != nil {
		return e.failUnexpected(rec, err)
	}
	e.log.Info("detonated", "run_id", rec.RunID, "status", rec.Status)

	if err := e.history.Append(ctx, rec.Technique, e.historyMax); err != nil {
		return e.failUnexpected(rec, fmt.Errorf("recording technique history: %w", err))
	}
	return nil
}

// advance persists one happy-path transition.
func (e *Engine) advance(rec *runstore.Record, next runstore.Status) error {
	if err := rec.Advance(next, e.now()); err != nil {
		return e.failUnexpected(rec, err)
	}
	if err := e.records.Save(rec); err != nil {
		return e.failUnexpected(rec, err)
	}
	return nil
}

// fail marks the record failed and saves it, best-effort. A record that can
// no longer fail (already cleaned) keeps its state; the error still reaches
// the caller through the normal return path.
func (e *Engine) fail(rec *runstore.Record, reason string) {
	if err := rec.MarkFailed(reason); err != nil {
		e.log.Warn("not recording failure", "run_id", rec.RunID, "status", rec.Status, "reason", reason)
		return
	}
	if err := e.records.Save(rec); err != nil {
		e.log.Error("saving failed run record", "run_id", rec.RunID, "error", err)
	}
}

// failUnexpected captures an unexpected mid-run error into the record and
// returns it.
func (e *Engine) failUnexpected(rec *runstore.Record, err error) error {
	e.fail(rec, err.Error())
	return fmt.Errorf("run %s: %w", rec.RunID, err)
}

// dwell picks a uniform random duration in the configured closed interval.
func (e *Engine) dwell(p RunParams) time.Duration {
	min, max := p.DwellMin, p.DwellMax
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	if max == 0 {
		return 0
	}
	secs := min + e.rng.IntN(max-min+1)
	return time.Duration(secs) * time.Second
}

// loadHistory treats any history failure as an empty history; a corrupt or
// unreadable exclusion window must never stop a run.
func (e *Engine) loadHistory(ctx context.Context) []string {
	hist, err := e.history.Load(ctx)
	if err != nil {
		e.log.Warn("ignoring unreadable technique history", "error", err)
		return nil
	}
	return hist
}

// CleanupReport describes what the post-hoc cleanup did. Revert and cleanup
// are both attempted regardless of each other's outcome; their failures are
// reported here, not returned as errors.
type CleanupReport struct {
	Record      *runstore.Record
	AlreadyDone bool
	RevertErr   error
	CleanupErr  error
}

// Cleanup tears down an existing run: revert (undo detonation effects), then
// cleanup (remove warmup infrastructure), then mark the record cleaned. Both
// sub-calls are best-effort. This path takes no run lock; by convention it
// targets only completed or failed runs.
func (e *Engine) Cleanup(ctx context.Context, runID string) (*CleanupReport, error) {
	rec, err := e.records.Load(runID)
	if err != nil {
		return nil, err
	}
	if rec.Status == runstore.StatusCleaned {
		return &CleanupReport{Record: rec, AlreadyDone: true}, nil
	}

	report := &CleanupReport{Record: rec}
	if err := e.tool.Revert(ctx, rec.Technique, rec.Region); err != nil {
		e.log.Warn("revert failed", "run_id", rec.RunID, "error", err)
		report.RevertErr = err
	}
	if err := e.tool.Cleanup(ctx, rec.Technique, rec.Region); err != nil {
		e.log.Warn("cleanup failed", "run_id", rec.RunID, "error", err)
		report.CleanupErr = err
	}

	if err := rec.MarkCleaned(e.now()); err != nil {
		return report, fmt.Errorf("run %s: %w", runID, err)
	}
	if err := e.records.Save(rec); err != nil {
		return report, fmt.Errorf("saving cleaned run record: %w", err)
	}
	e.log.Info("run cleaned", "run_id", rec.RunID)
	return report, nil
}
