package workflow

import (
	"sync"
	"testing"

	"github.com/uxlens/uxaudit_backend/models"
)

// NOTE: These tests are intentionally DB-free. They validate the lifecycle
// semantics the conditional status UPDATE enforces:
// - exactly one worker wins the pending -> processing claim
// - terminal rows are never written again
//
// Full DB integration tests should be added in an environment that can run
// MySQL + a Pub/Sub emulator.

type fakeRecordingRow struct {
	mu     sync.Mutex
	status models.RecordingStatus
}

// claim mirrors the guarded UPDATE: it succeeds only when the row is still
// pending, exactly as the WHERE clause matches or misses.
func (r *fakeRecordingRow) claim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.RecordingStatusPending {
		return false
	}
	r.status = models.RecordingStatusProcessing
	return true
}

func (r *fakeRecordingRow) markTerminal(to models.RecordingStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != models.RecordingStatusProcessing {
		return false
	}
	r.status = to
	return true
}

func TestConcurrentClaimsExactlyOneWins(t *testing.T) {
	for run := 0; run < 100; run++ {
		row := &fakeRecordingRow{status: models.RecordingStatusPending}

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if row.claim() {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("run=%d expected exactly 1 winning claim, got %d", run, wins)
		}
	}
}

func TestTerminalRowsRejectFurtherWrites(t *testing.T) {
	row := &fakeRecordingRow{status: models.RecordingStatusPending}

	if !row.claim() {
		t.Fatalf("first claim must succeed")
	}
	if !row.markTerminal(models.RecordingStatusCompleted) {
		t.Fatalf("processing -> completed must succeed")
	}
	if row.claim() {
		t.Fatalf("completed row must not be claimable")
	}
	if row.markTerminal(models.RecordingStatusFailed) {
		t.Fatalf("completed row must not transition to failed")
	}
}
