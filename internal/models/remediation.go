package models

import "time"

// ActionStatus is the outcome of one remediation or encryption action.
type ActionStatus string

const (
	ActionPlanned ActionStatus = "PLANNED" // dry run; nothing was changed
	ActionApplied ActionStatus = "APPLIED"
	ActionSkipped ActionStatus = "SKIPPED"
	ActionFailed  ActionStatus = "FAILED"
)

// RemediationResult records what happened to one security-group rule.
type RemediationResult struct {
	Request RemediationRequest `json:"request"`
	Region  string             `json:"region"`
	Status  ActionStatus       `json:"status"`
	Error   string             `json:"error,omitempty"`
}

// QueueEncryptionResult records what happened to one queue's encryption.
type QueueEncryptionResult struct {
	QueueURL  string       `json:"queue_url"`
	QueueName string       `json:"queue_name"`
	Region    string       `json:"region"`
	Before    string       `json:"before"`
	After     string       `json:"after"`
	KMSKeyID  string       `json:"kms_key_id,omitempty"`
	Status    ActionStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	// MessageTest is set when a send/receive round trip ran after the change.
	MessageTest *MessageTestResult `json:"message_test,omitempty"`
}

// MessageTestResult is the outcome of sending one test message to a queue and
// receiving from it. The two steps run independently. Received reports that
// the receive call succeeded; it may return zero messages.
type MessageTestResult struct {
	QueueURL         string `json:"queue_url"`
	QueueName        string `json:"queue_name"`
	Region           string `json:"region"`
	Sent             bool   `json:"sent"`
	MessageID        string `json:"message_id,omitempty"`
	SendError        string `json:"send_error,omitempty"`
	Received         bool   `json:"received"`
	MessagesReceived int    `json:"messages_received"`
	ReceiveError     string `json:"receive_error,omitempty"`
}

// OK reports whether both the send and the receive succeeded.
func (r MessageTestResult) OK() bool { return r.Sent && r.Received }

// KMSKey is an enabled KMS key usable for queue encryption.
type KMSKey struct {
	KeyID       string `json:"key_id"`
	ARN         string `json:"arn"`
	Description string `json:"description,omitempty"`
	KeyUsage    string `json:"key_usage"`
	KeyManager  string `json:"key_manager"`
	Region      string `json:"region"`
}

// RemediationReport is the output of a remediate or encrypt run.
type RemediationReport struct {
	ReportID    string                  `json:"report_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Action      string                  `json:"action"`
	Profile     string                  `json:"profile"`
	AccountID   string                  `json:"account_id"`
	DryRun      bool                    `json:"dry_run"`
	Rules       []RemediationResult     `json:"rules,omitempty"`
	Queues      []QueueEncryptionResult `json:"queues,omitempty"`
}
