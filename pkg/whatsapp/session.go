package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"waflow/pkg/whatsapp/types"
)

const sessionPollInterval = 2 * time.Second

type sessionRequest struct {
	Name string `json:"name"`
}

// CreateSession registers the session with the gateway. An "already
// exists" conflict is treated as success so startup is idempotent.
func (c *GatewayClient) CreateSession(ctx context.Context) error {
	payload := sessionRequest{Name: c.sessionName}
	err := c.postJSON(ctx, types.APIBase+types.EndpointSessions, payload, nil)
	if ge, ok := types.AsGatewayError(err); ok && ge.StatusCode == http.StatusUnprocessableEntity {
		return nil
	}
	return err
}

func (c *GatewayClient) DeleteSession(ctx context.Context) error {
	endpoint := c.sessionEndpoint("")
	return c.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *GatewayClient) StartSession(ctx context.Context) error {
	return c.postJSON(ctx, types.APIBase+types.EndpointSessions+"/"+url.PathEscape(c.sessionName)+"/start", struct{}{}, nil)
}

func (c *GatewayClient) StopSession(ctx context.Context) error {
	return c.postJSON(ctx, types.APIBase+types.EndpointSessions+"/"+url.PathEscape(c.sessionName)+"/stop", struct{}{}, nil)
}

func (c *GatewayClient) GetSessionStatus(ctx context.Context) (*types.Session, error) {
	var session types.Session
	if err := c.doRequest(ctx, http.MethodGet, c.sessionEndpoint(""), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// WaitForSessionReady polls the gateway until the session reports
// WORKING, the session fails, or maxWait elapses.
func (c *GatewayClient) WaitForSessionReady(ctx context.Context, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(sessionPollInterval)
	defer ticker.Stop()

	for {
		session, err := c.GetSessionStatus(ctx)
		if err == nil {
			switch session.Status {
			case types.SessionStatusWorking:
				return nil
			case types.SessionStatusFailed:
				return fmt.Errorf("session %s failed during startup", c.sessionName)
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("session %s not ready after %v", c.sessionName, maxWait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *GatewayClient) sessionEndpoint(suffix string) string {
	return c.baseURL + types.APIBase + types.EndpointSessions + "/" + url.PathEscape(c.sessionName) + suffix
}
