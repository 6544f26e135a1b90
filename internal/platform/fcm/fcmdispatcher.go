// Package fcm delivers notifications through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"log/slog"

	"firebase.google.com/go/v4/messaging"

	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
)

// ProviderName identifies FCM in logs, metrics and provider-wide errors.
const ProviderName = "fcm"

// maxBatchSize is the SendEach limit enforced by FCM.
const maxBatchSize = 500

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

type Dispatcher struct {
	client MessagingClient
	logger *slog.Logger
}

func NewDispatcher(client MessagingClient, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger.With("component", "FCMDispatcher"),
	}
}

func (d *Dispatcher) Name() string { return ProviderName }

func (d *Dispatcher) MaxBatchSize() int { return maxBatchSize }

// Send delivers one request. A rejection is returned as *dispatch.DeliveryError
// carrying the FCM error code when one can be determined.
func (d *Dispatcher) Send(ctx context.Context, req dispatch.Request) (string, error) {
	id, err := d.client.Send(ctx, buildMessage(req))
	if err != nil {
		return "", &dispatch.DeliveryError{Message: err.Error(), Code: classify(err)}
	}
	return id, nil
}

// SendBatch submits up to maxBatchSize requests in one SendEach call.
// Per-item failures are returned inside the results; an error means FCM
// rejected the batch as a whole.
func (d *Dispatcher) SendBatch(ctx context.Context, reqs []dispatch.Request) ([]dispatch.Result, error) {
	msgs := make([]*messaging.Message, len(reqs))
	for i, req := range reqs {
		msgs[i] = buildMessage(req)
	}

	br, err := d.client.SendEach(ctx, msgs)
	if err != nil {
		d.logger.Error("FCM rejected batch", "size", len(reqs), "err", err)
		return nil, &dispatch.ProviderWideError{
			Provider: ProviderName,
			Message:  err.Error(),
			Code:     classify(err),
			Err:      err,
		}
	}

	results := make([]dispatch.Result, len(br.Responses))
	for i, resp := range br.Responses {
		if resp.Success {
			results[i] = dispatch.Result{ID: resp.MessageID}
			continue
		}
		results[i] = dispatch.Result{Err: &dispatch.DeliveryError{Message: errMessage(resp.Error), Code: classify(resp.Error)}}
	}
	return results, nil
}

func buildMessage(req dispatch.Request) *messaging.Message {
	msg := &messaging.Message{
		Token: req.Token,
		Data:  req.Payload.Data(),
	}
	if req.Priority == dispatch.PriorityHigh {
		msg.Android = &messaging.AndroidConfig{Priority: "high"}
		msg.APNS = &messaging.APNSConfig{Headers: map[string]string{"apns-priority": "10"}}
	}
	return msg
}

// classify maps an FCM error onto its public error code. Errors without a
// recognised FCM error code get no code.
func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case messaging.IsUnregistered(err):
		return "registration-token-not-registered"
	case messaging.IsInvalidArgument(err):
		return "invalid-argument"
	case messaging.IsSenderIDMismatch(err):
		return "sender-id-mismatch"
	case messaging.IsQuotaExceeded(err):
		return "quota-exceeded"
	case messaging.IsThirdPartyAuthError(err):
		return "third-party-auth-error"
	case messaging.IsUnavailable(err):
		return "unavailable"
	case messaging.IsInternal(err):
		return "internal"
	default:
		return ""
	}
}

func errMessage(err error) string {
	if err == nil {
		return "unknown delivery failure"
	}
	return err.Error()
}
