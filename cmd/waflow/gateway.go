package main

import (
	"context"
	"sync"
	"time"

	"waflow/internal/models"
	"waflow/internal/service"
	"waflow/pkg/circuitbreaker"
	"waflow/pkg/whatsapp"
	"waflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
)

// gatewayProvider hands out one cached, breaker-wrapped gateway client
// per session. All consumers of a session share the breaker, so a
// flapping gateway trips once for everyone.
type gatewayProvider struct {
	cfg    models.GatewayConfig
	logger *logrus.Logger

	mu      sync.Mutex
	clients map[string]types.GatewayClient
}

func newGatewayProvider(cfg models.GatewayConfig, logger *logrus.Logger) *gatewayProvider {
	return &gatewayProvider{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]types.GatewayClient),
	}
}

func (p *gatewayProvider) ClientFor(sessionName string) types.GatewayClient {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[sessionName]; ok {
		return client
	}

	inner := whatsapp.NewClient(types.ClientConfig{
		BaseURL:     p.cfg.APIBaseURL,
		APIKey:      p.cfg.APIKey,
		SessionName: sessionName,
		Timeout:     time.Duration(p.cfg.TimeoutSec) * time.Second,
		RetryCount:  p.cfg.RetryCount,
	})
	client := &breakerClient{
		inner:   inner,
		breaker: circuitbreaker.New("gateway:"+sessionName, 5, 30*time.Second, p.logger),
	}
	p.clients[sessionName] = client
	return client
}

var _ service.GatewayProvider = (*gatewayProvider)(nil)

// breakerClient wraps a gateway client so that repeated transport
// failures short-circuit further calls until the cooldown elapses.
type breakerClient struct {
	inner   types.GatewayClient
	breaker *circuitbreaker.Breaker
}

func (c *breakerClient) SendText(ctx context.Context, chatID, text string) (*types.SendMessageResponse, error) {
	var resp *types.SendMessageResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		resp, innerErr = c.inner.SendText(ctx, chatID, text)
		return innerErr
	})
	return resp, err
}

func (c *breakerClient) StartTyping(ctx context.Context, chatID string) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.inner.StartTyping(ctx, chatID)
	})
}

func (c *breakerClient) StopTyping(ctx context.Context, chatID string) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.inner.StopTyping(ctx, chatID)
	})
}

func (c *breakerClient) SendSeen(ctx context.Context, chatID string) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.inner.SendSeen(ctx, chatID)
	})
}

func (c *breakerClient) CheckNumberStatus(ctx context.Context, phone string) (*types.NumberStatus, error) {
	var status *types.NumberStatus
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		status, innerErr = c.inner.CheckNumberStatus(ctx, phone)
		return innerErr
	})
	return status, err
}

func (c *breakerClient) CreateSession(ctx context.Context) error {
	return c.inner.CreateSession(ctx)
}

func (c *breakerClient) DeleteSession(ctx context.Context) error {
	return c.inner.DeleteSession(ctx)
}

func (c *breakerClient) StartSession(ctx context.Context) error {
	return c.inner.StartSession(ctx)
}

func (c *breakerClient) StopSession(ctx context.Context) error {
	return c.inner.StopSession(ctx)
}

func (c *breakerClient) GetSessionStatus(ctx context.Context) (*types.Session, error) {
	var session *types.Session
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		session, innerErr = c.inner.GetSessionStatus(ctx)
		return innerErr
	})
	return session, err
}

func (c *breakerClient) WaitForSessionReady(ctx context.Context, maxWait time.Duration) error {
	return c.inner.WaitForSessionReady(ctx, maxWait)
}

func (c *breakerClient) GetAllContacts(ctx context.Context, limit, offset int) ([]types.Contact, error) {
	var contacts []types.Contact
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		contacts, innerErr = c.inner.GetAllContacts(ctx, limit, offset)
		return innerErr
	})
	return contacts, err
}

func (c *breakerClient) GetSessionName() string {
	return c.inner.GetSessionName()
}
