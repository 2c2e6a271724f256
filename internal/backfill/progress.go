package backfill

import (
	"sync"
	"time"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// progressState is the orchestrator-owned mutable progress record. All
// mutation happens from the run goroutine; readers take snapshots under
// the lock.
type progressState struct {
	mu sync.Mutex
	p  model.BackfillProgress
}

func (s *progressState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = model.BackfillProgress{Status: model.BackfillIdle}
}

func (s *progressState) start(runID string, symbolsTotal int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.p = model.BackfillProgress{
		RunID:     runID,
		Status:    model.BackfillRunning,
		StartedAt: &now,
		Crypto:    model.CryptoProgress{SymbolsTotal: symbolsTotal},
	}
}

func (s *progressState) setTask(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.CurrentTask = task
}

func (s *progressState) addRows(rows int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Crypto.CandlesTotal += rows
}

func (s *progressState) cellFailed(key model.CellKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.FailedKeys = append(s.p.FailedKeys, key)
}

// symbolDone/symbolFailed tally whole symbols: a symbol counts as done
// only when every interval cell under it succeeded.
func (s *progressState) symbolDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Crypto.SymbolsDone++
}

func (s *progressState) symbolFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Crypto.SymbolsFailed++
}

func (s *progressState) complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.p.Status = model.BackfillCompleted
	s.p.CompletedAt = &now
	s.p.CurrentTask = ""
}

func (s *progressState) fail(message string, failed []model.CellKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.p.Status = model.BackfillErrored
	s.p.CompletedAt = &now
	s.p.ErrorMessage = message
	if failed != nil {
		s.p.FailedKeys = failed
	}
	s.p.CurrentTask = ""
}

func (s *progressState) snapshot() model.BackfillProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.p
	out.FailedKeys = append([]model.CellKey(nil), s.p.FailedKeys...)
	return out
}
