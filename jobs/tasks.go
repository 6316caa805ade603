// Package jobs runs scheduled background tasks: overdue credit scans and FX
// staleness checks. Jobs observe and warn; business mutations stay in the
// request path.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCreditOverdueScan flags clients holding overdue balances.
	TaskCreditOverdueScan = "credit:overdue_scan"
	// TaskFXStalenessCheck warns when exchange rates stop being refreshed.
	TaskFXStalenessCheck = "fx:staleness_check"
)

// OverdueScanPayload parameterizes the overdue credit scan.
type OverdueScanPayload struct {
	// ThresholdDays overrides the stored setting when > 0.
	ThresholdDays int `json:"threshold_days"`
	// Limit caps how many clients get logged per run.
	Limit int `json:"limit"`
}

// NewOverdueScanTask constructs an overdue scan task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCreditOverdueScan, data), nil
}

// FXStalenessPayload parameterizes the staleness check.
type FXStalenessPayload struct {
	// MaxAgeHours overrides the configured staleness window when > 0.
	MaxAgeHours int `json:"max_age_hours"`
}

// NewFXStalenessTask constructs an FX staleness check task.
func NewFXStalenessTask(payload FXStalenessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFXStalenessCheck, data), nil
}
