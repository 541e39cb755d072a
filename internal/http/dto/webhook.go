package dto

type WebhookAcceptedResponse struct {
	WebhookLogID int64  `json:"webhook_log_id"`
	DedupeKey    string `json:"dedupe_key"`
	Enqueued     bool   `json:"enqueued"`
	Duplicated   bool   `json:"duplicated"`
	Malformed    bool   `json:"malformed"`
}

type ReplayResponse struct {
	WebhookLogID int64  `json:"webhook_log_id"`
	Account      string `json:"account"`
	Attempts     int32  `json:"attempts"`
	Enqueued     bool   `json:"enqueued"`
}
