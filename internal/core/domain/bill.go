package domain

import "time"

// MailEvent is the inbound mail-flow notification that names a raw message.
type MailEvent struct {
	SummaryVersion string `json:"summaryVersion"`
	Subject        string `json:"subject"`
	MessageID      string `json:"messageId"`
	InvocationID   string `json:"invocationId"`
	FlowDirection  string `json:"flowDirection"`
}

// StoredAttachment is where the ingestor put an extracted attachment.
type StoredAttachment struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	StoredAt  time.Time `json:"stored_at"`
	MessageID string    `json:"message_id"`
}

// Bill is the subset of the extracted record the notifier renders.
type Bill struct {
	Amount  float64
	Company string
	Subject string
	Date    string
}

type WebhookMessage struct {
	Username string         `json:"username"`
	Embeds   []WebhookEmbed `json:"embeds"`
}

type WebhookEmbed struct {
	Author      WebhookAuthor  `json:"author"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Fields      []WebhookField `json:"fields"`
}

type WebhookAuthor struct {
	Name string `json:"name"`
}

type WebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}
