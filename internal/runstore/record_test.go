package runstore

import (
	"regexp"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestRecord() *Record {
	return New("20240115T120000Z-abcd1234", "aws.persistence.iam-backdoor-user",
		"111111111111", "us-east-1", ModeTrain, "", t0)
}

func TestAdvance_HappyPath(t *testing.T) {
	r := newTestRecord()

	if err := r.Advance(StatusWarmupComplete, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Advance(warmup_complete) failed: %v", err)
	}
	if r.WarmupAt == nil || !r.WarmupAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("WarmupAt = %v, want %v", r.WarmupAt, t0.Add(time.Minute))
	}

	if err := r.Advance(StatusDetonated, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("Advance(detonated) failed: %v", err)
	}
	if r.DetonatedAt == nil {
		t.Error("DetonatedAt not set")
	}

	if err := r.Advance(StatusCleaned, t0.Add(3*time.Minute)); err != nil {
		t.Fatalf("Advance(cleaned) failed: %v", err)
	}
	if r.CleanedAt == nil {
		t.Error("CleanedAt not set")
	}
	if r.Status != StatusCleaned {
		t.Errorf("Status = %q, want %q", r.Status, StatusCleaned)
	}
}

func TestAdvance_RejectsInvalidTransitions(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
	}{
		{"skip warmup", StatusStarted, StatusDetonated},
		{"skip to cleaned", StatusStarted, StatusCleaned},
		{"skip detonation", StatusWarmupComplete, StatusCleaned},
		{"backwards", StatusDetonated, StatusWarmupComplete},
		{"restart", StatusCleaned, StatusStarted},
		{"out of failed", StatusFailed, StatusWarmupComplete},
		{"failed via advance", StatusStarted, StatusFailed},
		{"self loop", StatusStarted, StatusStarted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRecord()
			r.Status = tc.from
			if err := r.Advance(tc.to, t0); err == nil {
				t.Errorf("Advance(%s -> %s) succeeded, want rejection", tc.from, tc.to)
			}
		})
	}
}

func TestMarkFailed(t *testing.T) {
	for _, from := range []Status{StatusStarted, StatusWarmupComplete, StatusDetonated} {
		r := newTestRecord()
		r.Status = from
		if err := r.MarkFailed("warmup exploded"); err != nil {
			t.Errorf("MarkFailed from %s failed: %v", from, err)
		}
		if r.Status != StatusFailed || r.Error != "warmup exploded" {
			t.Errorf("after MarkFailed: status=%q error=%q", r.Status, r.Error)
		}
	}
}

func TestMarkFailed_TerminalStates(t *testing.T) {
	for _, from := range []Status{StatusCleaned, StatusFailed} {
		r := newTestRecord()
		r.Status = from
		if err := r.MarkFailed("too late"); err == nil {
			t.Errorf("MarkFailed from %s succeeded, want rejection", from)
		}
	}
}

func TestMarkCleaned_RecoveryPath(t *testing.T) {
	// The post-hoc cleanup command may clean any non-cleaned run,
	// including failed ones.
	for _, from := range []Status{StatusStarted, StatusWarmupComplete, StatusDetonated, StatusFailed} {
		r := newTestRecord()
		r.Status = from
		if err := r.MarkCleaned(t0.Add(time.Hour)); err != nil {
			t.Errorf("MarkCleaned from %s failed: %v", from, err)
			continue
		}
		if r.Status != StatusCleaned || r.CleanedAt == nil {
			t.Errorf("after MarkCleaned from %s: status=%q cleaned_at=%v", from, r.Status, r.CleanedAt)
		}
	}
}

func TestMarkCleaned_AlreadyCleaned(t *testing.T) {
	r := newTestRecord()
	r.Status = StatusCleaned
	if err := r.MarkCleaned(t0); err == nil {
		t.Error("MarkCleaned on cleaned record succeeded, want rejection")
	}
}

func TestNewRunID_Format(t *testing.T) {
	id := NewRunID(t0)
	pattern := regexp.MustCompile(`^20240115T120000Z-[0-9a-f]{8}$`)
	if !pattern.MatchString(id) {
		t.Errorf("NewRunID = %q, want match for %s", id, pattern)
	}
}

func TestNewRunID_UniqueWithinSecond(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewRunID(t0)
		if seen[id] {
			t.Fatalf("duplicate run ID %q", id)
		}
		seen[id] = true
	}
}
