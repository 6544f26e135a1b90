package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/rockfish84/kakaotalk-server-backend/internal/pipeline"
	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
)

// Dispatcher fans a payload out to every registered recipient.
// *pipeline.Engine satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload dispatch.Payload) (*dispatch.Report, error)
}

// SendAPI serves the broadcast endpoint.
type SendAPI struct {
	Engine Dispatcher
	Logger *slog.Logger
}

func NewSendAPI(engine Dispatcher, logger *slog.Logger) *SendAPI {
	return &SendAPI{
		Engine: engine,
		Logger: logger.With("component", "SendAPI"),
	}
}

// OutcomeResponse is one entry of the responses array. Exactly one of
// Result or Error is set.
type OutcomeResponse struct {
	Token  string `json:"token"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

type SendResponse struct {
	Success      bool              `json:"success"`
	SuccessCount int               `json:"successCount"`
	FailureCount int               `json:"failureCount"`
	Responses    []OutcomeResponse `json:"responses"`
}

// Send handles POST /send.
func (api *SendAPI) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		if isBodyTooLarge(err) {
			WriteJSONError(w, http.StatusBadRequest, msgBodyTooLarge)
			return
		}
		WriteJSONError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	payload, err := pipeline.PayloadTransformer(raw)
	if err != nil {
		api.writeDispatchError(w, r, err)
		return
	}

	report, err := api.Engine.Dispatch(ctx, payload)
	if err != nil {
		api.writeDispatchError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toSendResponse(report))
}

func toSendResponse(report *dispatch.Report) SendResponse {
	resp := SendResponse{
		Success:      true,
		SuccessCount: report.SuccessCount,
		FailureCount: report.FailureCount,
		Responses:    make([]OutcomeResponse, len(report.Outcomes)),
	}
	for i, out := range report.Outcomes {
		if out.Succeeded() {
			resp.Responses[i] = OutcomeResponse{Token: out.Token, Result: out.Result}
			continue
		}
		resp.Responses[i] = OutcomeResponse{Token: out.Token, Error: out.Error.Message, Code: out.Error.Code}
	}
	return resp
}

// writeDispatchError maps the dispatch error taxonomy onto HTTP replies.
func (api *SendAPI) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := RequestIDFromContext(r.Context())

	var vErr *dispatch.ValidationError
	var pErr *dispatch.ProviderWideError
	switch {
	case errors.Is(err, dispatch.ErrEmptyRegistry):
		api.Logger.Info("Send rejected", "reason", err.Error(), "request_id", requestID)
		WriteJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &vErr):
		api.Logger.Info("Send rejected", "reason", vErr.Message, "request_id", requestID)
		WriteJSONError(w, http.StatusBadRequest, vErr.Message)
	case errors.As(err, &pErr):
		api.Logger.Error("Provider rejected send", "provider", pErr.Provider, "code", pErr.Code, "err", pErr.Message, "request_id", requestID)
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   pErr.Message,
			Code:    pErr.Code,
			Details: pErr.Details,
		})
	default:
		api.Logger.Error("Send failed", "err", err, "request_id", requestID)
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
