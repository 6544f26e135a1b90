package dispatch

import (
	"context"
)

// Provider defines the contract for an external push-delivery service
// (e.g., Google's FCM, Apple's APNS).
//
// Send makes exactly one delivery attempt for one recipient. A failure for one
// request must never affect any other request. Errors describing why this
// recipient could not be reached should be returned as *DeliveryError so that
// callers get a machine-readable code.
type Provider interface {
	Name() string
	Send(ctx context.Context, req Request) (string, error)
}

// BatchProvider is a Provider that can also accept many requests in one call.
//
// SendBatch must return exactly one Result per input request, in input order,
// and one bad request must not fail the others. The returned error is reserved
// for a provider-wide rejection of the whole call, in which case no per-item
// results exist.
type BatchProvider interface {
	Provider
	// MaxBatchSize is the largest number of requests accepted by one SendBatch call.
	MaxBatchSize() int
	SendBatch(ctx context.Context, reqs []Request) ([]Result, error)
}

// TokenLister is the only view of the registry the dispatch engine needs.
type TokenLister interface {
	// ListAll returns a point-in-time copy of every registered token.
	ListAll() []string
}

// TokenRegistry is the write and read surface used by the HTTP handlers.
type TokenRegistry interface {
	TokenLister
	// Register adds token if absent. An empty token is a *ValidationError.
	Register(token string) (bool, error)
}
