// Package apns provides the client for the Apple Push Notification Service.
package apns

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
)

// ProviderName identifies APNs in logs, metrics and provider-wide errors.
const ProviderName = "apns"

// codeTransport marks requests that never got an answer from APNs.
const codeTransport = "transport-error"

// APNSClient defines the subset of the apns2.Client methods we use.
// This allows mocking for unit tests.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

type Dispatcher struct {
	client APNSClient
	topic  string // The App Bundle ID
	logger *slog.Logger
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw string content of the .p8 file
	P8KeyContent string
	// Production selects api.push.apple.com over the sandbox gateway.
	Production bool
}

// NewDispatcher creates a configured APNS dispatcher.
// It parses the P8 key immediately to fail fast on startup if credentials are bad.
func NewDispatcher(cfg Config, logger *slog.Logger) (*Dispatcher, error) {
	authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	tokenSource := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	client := apns2.NewTokenClient(tokenSource)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return newDispatcher(client, cfg.BundleID, logger), nil
}

func newDispatcher(client APNSClient, topic string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		topic:  topic,
		logger: logger.With("component", "APNSDispatcher"),
	}
}

func (d *Dispatcher) Name() string { return ProviderName }

// Send delivers one request. The APNs HTTP/2 API is unary, so there is no
// batch counterpart; the engine fans out with independent calls instead.
func (d *Dispatcher) Send(ctx context.Context, req dispatch.Request) (string, error) {
	n := &apns2.Notification{
		DeviceToken: req.Token,
		Topic:       d.topic,
		Payload:     buildPayload(req.Payload),
	}
	if req.Priority == dispatch.PriorityHigh {
		n.Priority = apns2.PriorityHigh
	}

	res, err := d.client.PushWithContext(ctx, n)
	if err != nil {
		d.logger.Debug("APNs transport failed", "token", req.Token, "err", err)
		return "", &dispatch.DeliveryError{Message: err.Error(), Code: codeTransport}
	}

	if !res.Sent() {
		reason := res.Reason
		if reason == "" {
			reason = fmt.Sprintf("status %d", res.StatusCode)
		}
		return "", &dispatch.DeliveryError{Message: reason, Code: res.Reason}
	}
	return res.ApnsID, nil
}

func buildPayload(p dispatch.Payload) *payload.Payload {
	builder := payload.NewPayload().AlertBody(p.Content)
	for k, v := range p.Data() {
		builder.Custom(k, v)
	}
	return builder
}
