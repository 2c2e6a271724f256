package model

import "time"

// BackfillStatus is the lifecycle state of a backfill run.
type BackfillStatus string

const (
	BackfillIdle      BackfillStatus = "idle"
	BackfillRunning   BackfillStatus = "running"
	BackfillCompleted BackfillStatus = "completed"
	BackfillErrored   BackfillStatus = "error"
)

// CryptoProgress counts symbols and persisted rows for the crypto grid.
// A symbol is done only when every interval cell under it succeeded.
type CryptoProgress struct {
	SymbolsTotal  int   `json:"symbols_total"`
	SymbolsDone   int   `json:"symbols_done"`
	SymbolsFailed int   `json:"symbols_failed"`
	CandlesTotal  int64 `json:"candles_total"`
}

// BackfillProgress is the externally visible state of the orchestrator.
// The orchestrator mutates its own copy; readers always receive a snapshot.
type BackfillProgress struct {
	RunID        string         `json:"run_id"`
	Status       BackfillStatus `json:"status"`
	StartedAt    *time.Time     `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at"`
	Crypto       CryptoProgress `json:"crypto"`
	FailedKeys   []CellKey      `json:"failed_keys"`
	CurrentTask  string         `json:"current_task"`
	ErrorMessage string         `json:"error_message"`
}
