// Package client posts envelopes to a remote floor or agent endpoint.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/openfloor/openfloor-go/pkg/openfloor"
)

// Client exchanges envelopes with one endpoint over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	authToken  string
	logger     *slog.Logger
}

// Option configures a new Client.
type Option func(*Client)

// WithHTTPClient replaces the transport, e.g. for recorded tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAuthToken sends the token as a bearer Authorization header.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a client for the given endpoint URL.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("client: endpoint is required")
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Exchange posts env and decodes the reply envelope. Unknown event types in
// the reply are retained as opaque events.
func (c *Client) Exchange(ctx context.Context, env *openfloor.Envelope) (*openfloor.Envelope, error) {
	payload, err := openfloor.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("serialize envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	c.logger.Debug("posting envelope",
		slog.String("endpoint", c.endpoint),
		slog.String("conversation_id", env.Conversation.ID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post envelope: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, truncate(body, 256))
	}

	reply, err := openfloor.ParseEnvelope(body, openfloor.WithOpaqueEvents())
	if err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return reply, nil
}

// Announce publishes the agent's manifest to the endpoint on a fresh
// conversation, so a floor learns the agent exists and what it can do.
// Returns the floor's reply envelope.
func (c *Client) Announce(ctx context.Context, manifest *openfloor.Manifest) (*openfloor.Envelope, error) {
	if manifest == nil || manifest.Identification == nil {
		return nil, fmt.Errorf("client: manifest with identification is required")
	}

	sender := &openfloor.Sender{
		SpeakerURI: manifest.Identification.SpeakerURI,
		ServiceURL: manifest.Identification.ServiceURL,
	}
	env, err := openfloor.NewEnvelope(openfloor.NewConversation(""), sender,
		openfloor.NewPublishManifestsEvent([]*openfloor.Manifest{manifest}, nil))
	if err != nil {
		return nil, err
	}
	return c.Exchange(ctx, env)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
