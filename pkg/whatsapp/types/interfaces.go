package types

import (
	"context"
	"time"
)

// GatewayClient is the outbound surface of the messaging gateway used by
// the dispatch governor. One client is scoped to one session.
type GatewayClient interface {
	SendText(ctx context.Context, chatID, text string) (*SendMessageResponse, error)
	StartTyping(ctx context.Context, chatID string) error
	StopTyping(ctx context.Context, chatID string) error
	SendSeen(ctx context.Context, chatID string) error
	CheckNumberStatus(ctx context.Context, phone string) (*NumberStatus, error)

	CreateSession(ctx context.Context) error
	DeleteSession(ctx context.Context) error
	StartSession(ctx context.Context) error
	StopSession(ctx context.Context) error
	GetSessionStatus(ctx context.Context) (*Session, error)
	WaitForSessionReady(ctx context.Context, maxWait time.Duration) error

	GetAllContacts(ctx context.Context, limit, offset int) ([]Contact, error)
	GetSessionName() string
}
