package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Channel selects the delivery medium for a reminder.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// ValidChannel reports whether c is a known channel.
func ValidChannel(c Channel) bool {
	return c == ChannelSMS || c == ChannelWhatsApp
}

// Gateway delivers a message to a phone number. Delivery mechanics stay
// behind this port; the rest of the app never sees the wire format.
type Gateway interface {
	Send(ctx context.Context, channel Channel, phone, message string) error
}

// HTTPGateway talks to an Africa's Talking style messaging REST endpoint.
type HTTPGateway struct {
	baseURL  string
	apiKey   string
	username string
	senderID string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPGateway constructs HTTPGateway.
func NewHTTPGateway(baseURL, apiKey, username, senderID string, logger *slog.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL:  baseURL,
		apiKey:   apiKey,
		username: username,
		senderID: senderID,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

type sendRequest struct {
	Username string `json:"username"`
	To       string `json:"to"`
	From     string `json:"from,omitempty"`
	Message  string `json:"message"`
	Channel  string `json:"channel"`
}

// Send posts the message to the gateway. Non-2xx responses are errors.
func (g *HTTPGateway) Send(ctx context.Context, channel Channel, phone, message string) error {
	if g.baseURL == "" {
		return fmt.Errorf("sms gateway not configured")
	}
	body, err := json.Marshal(sendRequest{
		Username: g.username,
		To:       phone,
		From:     g.senderID,
		Message:  message,
		Channel:  string(channel),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messaging", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", g.apiKey)
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway send: unexpected status %d", resp.StatusCode)
	}
	if g.logger != nil {
		g.logger.Info("message delivered to gateway", "channel", channel, "to", phone)
	}
	return nil
}
