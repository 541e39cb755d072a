package queue

type TaskType string

const (
	// TaskTypeWebhook processes one persisted webhook log.
	TaskTypeWebhook TaskType = "webhook"
	// TaskTypeSyncAccount runs an out-of-schedule sync pass for one account.
	TaskTypeSyncAccount TaskType = "sync_account"
)

type Task struct {
	TaskType     TaskType
	WebhookLogID int64
	Account      string
	EventType    string
	TraceID      *string
	Attempt      int
}
