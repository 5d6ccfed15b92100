package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"waflow/pkg/whatsapp/types"
)

// GatewayClient talks to a WAHA-style WhatsApp HTTP gateway. All calls
// are scoped to the configured session and bounded by the client
// timeout; non-2xx responses come back as *types.GatewayError so the
// anomaly detector can classify them.
type GatewayClient struct {
	baseURL     string
	apiKey      string
	sessionName string
	client      *http.Client
}

func NewClient(cfg types.ClientConfig) types.GatewayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GatewayClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		sessionName: cfg.SessionName,
		client:      &http.Client{Timeout: timeout},
	}
}

func (c *GatewayClient) GetSessionName() string {
	return c.sessionName
}

func (c *GatewayClient) SendText(ctx context.Context, chatID, text string) (*types.SendMessageResponse, error) {
	payload := types.SendTextRequest{
		ChatID:  chatID,
		Text:    text,
		Session: c.sessionName,
	}

	var raw struct {
		ID *struct {
			Serialized string `json:"_serialized"`
		} `json:"id"`
	}
	if err := c.postJSON(ctx, types.APIBase+types.EndpointSendText, payload, &raw); err != nil {
		return nil, err
	}

	resp := &types.SendMessageResponse{Status: "sent"}
	if raw.ID != nil {
		resp.MessageID = raw.ID.Serialized
	}
	return resp, nil
}

func (c *GatewayClient) StartTyping(ctx context.Context, chatID string) error {
	payload := types.TypingRequest{ChatID: chatID, Session: c.sessionName}
	return c.postJSON(ctx, types.APIBase+types.EndpointStartTyping, payload, nil)
}

func (c *GatewayClient) StopTyping(ctx context.Context, chatID string) error {
	payload := types.TypingRequest{ChatID: chatID, Session: c.sessionName}
	return c.postJSON(ctx, types.APIBase+types.EndpointStopTyping, payload, nil)
}

func (c *GatewayClient) SendSeen(ctx context.Context, chatID string) error {
	payload := types.SeenRequest{ChatID: chatID, Session: c.sessionName}
	return c.postJSON(ctx, types.APIBase+types.EndpointSendSeen, payload, nil)
}

// CheckNumberStatus asks the gateway whether the phone number is
// registered on the network.
func (c *GatewayClient) CheckNumberStatus(ctx context.Context, phone string) (*types.NumberStatus, error) {
	endpoint := fmt.Sprintf("%s%s%s?phone=%s&session=%s",
		c.baseURL, types.APIBase, types.EndpointNumberStatus,
		url.QueryEscape(phone), url.QueryEscape(c.sessionName))

	var status types.NumberStatus
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *GatewayClient) GetAllContacts(ctx context.Context, limit, offset int) ([]types.Contact, error) {
	endpoint := fmt.Sprintf("%s%s%s?session=%s&limit=%d&offset=%d",
		c.baseURL, types.APIBase, types.EndpointContactsAll,
		url.QueryEscape(c.sessionName), limit, offset)

	var contacts []types.Contact
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (c *GatewayClient) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body), out)
}

func (c *GatewayClient) doRequest(ctx context.Context, method, endpoint string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gatewayErrorFromResponse(endpoint, resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

func gatewayErrorFromResponse(endpoint string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := string(raw)
	var parsed types.ErrorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Message != "" {
			message = parsed.Message
		} else if parsed.Error != "" {
			message = parsed.Error
		}
	}

	return &types.GatewayError{
		StatusCode: resp.StatusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}
