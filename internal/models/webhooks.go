package models

// Gateway webhook event types
const (
	EventMessage       = "message"
	EventMessageACK    = "message.ack"
	EventSessionStatus = "session.status"
)

// Gateway message ACK statuses
const (
	ACKError   = -1
	ACKPending = 0
	ACKServer  = 1
	ACKDevice  = 2
	ACKRead    = 3
	ACKPlayed  = 4
)

// GatewayWebhookPayload is the envelope the WAHA-style gateway posts to
// the webhook endpoint. Payload fields are a union across event types;
// only the fields for the given event are populated.
type GatewayWebhookPayload struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Event     string `json:"event"`
	Session   string `json:"session"`
	Me        struct {
		ID       string `json:"id"`
		PushName string `json:"pushName"`
	} `json:"me"`
	Payload struct {
		// message / message.ack fields
		ID        string `json:"id"`
		Timestamp int64  `json:"timestamp"`
		From      string `json:"from"`
		FromMe    bool   `json:"fromMe"`
		To        string `json:"to"`
		Body      string `json:"body"`
		ACK       *int   `json:"ack,omitempty"`

		// session.status fields
		Name   string `json:"name,omitempty"`
		Status string `json:"status,omitempty"`
	} `json:"payload"`
	Engine string `json:"engine"`
}
