package types

import (
	"time"
)

// SessionStatus is the gateway-reported state of a WhatsApp session.
type SessionStatus string

const (
	SessionStatusStarting SessionStatus = "STARTING"
	SessionStatusScanQR   SessionStatus = "SCAN_QR_CODE"
	SessionStatusWorking  SessionStatus = "WORKING"
	SessionStatusStopped  SessionStatus = "STOPPED"
	SessionStatusFailed   SessionStatus = "FAILED"
)

// Session is the gateway's view of one account session.
type Session struct {
	Name      string        `json:"name"`
	Status    SessionStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SendTextRequest is the body for the sendText endpoint.
type SendTextRequest struct {
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
	Session string `json:"session"`
}

// TypingRequest starts or stops the typing indicator.
type TypingRequest struct {
	ChatID  string `json:"chatId"`
	Session string `json:"session"`
}

// SeenRequest marks a chat as seen.
type SeenRequest struct {
	ChatID  string `json:"chatId"`
	Session string `json:"session"`
}

// SendMessageResponse is the normalized result of a send call.
type SendMessageResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// NumberStatus reports whether a phone number is registered on the
// network.
type NumberStatus struct {
	NumberExists bool   `json:"numberExists"`
	ChatID       string `json:"chatId"`
}

// Contact is a gateway contact entry.
type Contact struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	Name        string `json:"name"`
	PushName    string `json:"pushname"`
	IsMyContact bool   `json:"isMyContact"`
	IsBlocked   bool   `json:"isBlocked"`
	IsGroup     bool   `json:"isGroup"`
}

// DisplayName returns the best available name for the contact.
func (c *Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.PushName != "" {
		return c.PushName
	}
	return c.Number
}

// ErrorResponse is the gateway's error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ClientConfig configures the gateway client.
type ClientConfig struct {
	BaseURL     string        `json:"base_url"`
	APIKey      string        `json:"api_key"`
	SessionName string        `json:"session_name"`
	Timeout     time.Duration `json:"timeout"`
	RetryCount  int           `json:"retry_count"`
}
