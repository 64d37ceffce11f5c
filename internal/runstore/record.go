package runstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode selects what happens to attack artifacts after detonation.
type Mode string

const (
	// ModeTrain leaves artifacts behind for a full IR lifecycle exercise.
	ModeTrain Mode = "train"

	// ModeValidate requests auto-cleanup at detonation time, for
	// detection-validation loops.
	ModeValidate Mode = "validate"
)

// ParseMode validates a mode string from user input.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTrain, ModeValidate:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q: must be %q or %q", s, ModeTrain, ModeValidate)
}

// Status is the run lifecycle state. It is a closed enumeration: the only
// writers are Advance, MarkFailed and MarkCleaned, which validate every
// transition.
type Status string

const (
	StatusStarted        Status = "started"
	StatusWarmupComplete Status = "warmup_complete"
	StatusDetonated      Status = "detonated"
	StatusCleaned        Status = "cleaned"
	StatusFailed         Status = "failed"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusStarted, StatusWarmupComplete, StatusDetonated, StatusCleaned, StatusFailed:
		return true
	}
	return false
}

// advances maps each status to its single legal successor on the happy path.
var advances = map[Status]Status{
	StatusStarted:        StatusWarmupComplete,
	StatusWarmupComplete: StatusDetonated,
	StatusDetonated:      StatusCleaned,
}

// failableFrom lists the states a run may fail out of. A cleaned run can no
// longer fail, and failed is terminal.
var failableFrom = map[Status]bool{
	StatusStarted:        true,
	StatusWarmupComplete: true,
	StatusDetonated:      true,
}

// Record is the durable per-run state. Its JSON form is an external contract:
// other tooling reads the persisted files, so field names and the RFC 3339
// timestamp encoding are stable.
type Record struct {
	RunID        string     `json:"run_id"`
	Technique    string     `json:"technique"`
	Account      string     `json:"account"`
	Region       string     `json:"region"`
	Mode         Mode       `json:"mode"`
	TacticFilter string     `json:"tactic_filter,omitempty"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	WarmupAt     *time.Time `json:"warmup_at,omitempty"`
	DetonatedAt  *time.Time `json:"detonated_at,omitempty"`
	CleanedAt    *time.Time `json:"cleaned_at,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// New creates a record in the started state.
func New(runID, technique, account, region string, mode Mode, tacticFilter string, startedAt time.Time) *Record {
	return &Record{
		RunID:        runID,
		Technique:    technique,
		Account:      account,
		Region:       region,
		Mode:         mode,
		TacticFilter: tacticFilter,
		Status:       StatusStarted,
		StartedAt:    startedAt.UTC(),
	}
}

// Advance moves the record one step along the
// started -> warmup_complete -> detonated -> cleaned chain, stamping the
// matching timestamp. Any other move, including anything out of failed, is
// rejected.
func (r *Record) Advance(next Status, at time.Time) error {
	if advances[r.Status] != next {
		return &TransitionError{RunID: r.RunID, From: r.Status, To: next}
	}
	at = at.UTC()
	switch next {
	case StatusWarmupComplete:
		r.WarmupAt = &at
	case StatusDetonated:
		r.DetonatedAt = &at
	case StatusCleaned:
		r.CleanedAt = &at
	}
	r.Status = next
	return nil
}

// MarkFailed moves the record to the terminal failed state, recording why.
// Cleaned and already-failed records cannot fail.
func (r *Record) MarkFailed(reason string) error {
	if !failableFrom[r.Status] {
		return &TransitionError{RunID: r.RunID, From: r.Status, To: StatusFailed}
	}
	r.Status = StatusFailed
	r.Error = reason
	return nil
}

// MarkCleaned is the recovery path used by the post-hoc cleanup command. It
// accepts any non-cleaned record, failed ones included: cleanup exists
// precisely to tear down partially-failed runs. The run path itself never
// calls this; it reaches cleaned only through Advance.
func (r *Record) MarkCleaned(at time.Time) error {
	if r.Status == StatusCleaned {
		return &TransitionError{RunID: r.RunID, From: r.Status, To: StatusCleaned}
	}
	at = at.UTC()
	r.CleanedAt = &at
	r.Status = StatusCleaned
	return nil
}

// validate checks that a decoded record carries the full required field set.
// Used by Store.Load to classify unparseable or truncated files as corrupt
// rather than silently patching them.
func (r *Record) validate() error {
	switch {
	case r.RunID == "":
		return fmt.Errorf("missing run_id")
	case r.Technique == "":
		return fmt.Errorf("missing technique")
	case r.Account == "":
		return fmt.Errorf("missing account")
	case r.Region == "":
		return fmt.Errorf("missing region")
	case r.Mode != ModeTrain && r.Mode != ModeValidate:
		return fmt.Errorf("invalid mode %q", r.Mode)
	case !r.Status.Valid():
		return fmt.Errorf("invalid status %q", r.Status)
	case r.StartedAt.IsZero():
		return fmt.Errorf("missing started_at")
	}
	return nil
}

// TransitionError reports a rejected status write.
type TransitionError struct {
	RunID string
	From  Status
	To    Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s (run %s)", e.From, e.To, e.RunID)
}

// NewRunID generates a globally unique run identifier: a UTC timestamp for
// human ordering plus a random suffix so two runs in the same second never
// collide. Run IDs sort chronologically as plain strings.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102T150405Z"), suffix)
}
