package models

const (
	StatusBooked    = "BOOKED"
	StatusModified  = "MODIFIED"
	StatusCancelled = "CANCELLED"
)

// IsValidStatus reports whether s is one of the booking statuses.
func IsValidStatus(s string) bool {
	switch s {
	case StatusBooked, StatusModified, StatusCancelled:
		return true
	}
	return false
}

const (
	TaskStatusPending   = "pending"
	TaskStatusRetry     = "retry"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

const (
	// DefaultTokenTTLMinutes lifetime of an agent session token
	DefaultTokenTTLMinutes = 12 * 60

	// DefaultLoginAttempts login attempts allowed per window
	DefaultLoginAttempts = 10

	// DefaultLoginWindow login throttling window in seconds
	DefaultLoginWindow = 15 * 60

	// WorkerQueueSize in-memory outbox queue size
	WorkerQueueSize = 128

	// DefaultMaxUploadMB upload size cap
	DefaultMaxUploadMB = 10
)

const (
	LabelMCO    = "MCO"
	LabelRefund = "Refund amount"
)
