// --- File: internal/pipeline/transformer.go ---
// Package pipeline contains the dispatch engine and the decoding of send requests.
package pipeline

import (
	"encoding/json"

	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
)

// SendRequest is the wire shape of a POST /send body.
type SendRequest struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	EmoticonRes string `json:"emoticonRes,omitempty"`
}

// PayloadTransformer decodes a raw send body into a dispatch.Payload.
//
// An empty body decodes to an empty payload; required-field validation is left
// to the engine so that an empty registry is reported first. Malformed JSON
// is returned as a *dispatch.ValidationError.
func PayloadTransformer(raw []byte) (dispatch.Payload, error) {
	var req SendRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			return dispatch.Payload{}, dispatch.NewValidationError("invalid json")
		}
	}
	return dispatch.Payload{
		Type:        req.Type,
		Content:     req.Content,
		EmoticonRes: req.EmoticonRes,
	}, nil
}
