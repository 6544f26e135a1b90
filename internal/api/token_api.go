package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
)

// TokenAPI serves token registration and listing.
type TokenAPI struct {
	Store  dispatch.TokenRegistry
	Logger *slog.Logger
}

func NewTokenAPI(store dispatch.TokenRegistry, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		Store:  store,
		Logger: logger.With("component", "TokenAPI"),
	}
}

type RegisterTokenRequest struct {
	Token string `json:"token"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type TokensResponse struct {
	Tokens []string `json:"tokens"`
}

// RegisterToken handles POST /register-token.
func (api *TokenAPI) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var req RegisterTokenRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	// An empty body is treated like a body without a token.
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		if isBodyTooLarge(err) {
			WriteJSONError(w, http.StatusBadRequest, msgBodyTooLarge)
			return
		}
		WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if _, err := api.Store.Register(req.Token); err != nil {
		var vErr *dispatch.ValidationError
		if errors.As(err, &vErr) {
			WriteJSONError(w, http.StatusBadRequest, vErr.Message)
			return
		}
		api.Logger.Error("failed to register token", "err", err, "request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	api.Logger.Debug("Token registered", "token", req.Token)
	WriteJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ListTokens handles GET /tokens.
func (api *TokenAPI) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens := api.Store.ListAll()
	if tokens == nil {
		tokens = []string{}
	}
	WriteJSON(w, http.StatusOK, TokensResponse{Tokens: tokens})
}
