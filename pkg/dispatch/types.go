package dispatch

// PriorityHigh is the provider-level priority hint attached to every request.
const PriorityHigh = "high"

// Payload is the caller-supplied content of one notification.
// The same Payload is sent unchanged to every recipient of a dispatch.
type Payload struct {
	Type        string
	Content     string
	EmoticonRes string
}

// NewPayload validates the required fields and returns an immutable payload.
func NewPayload(kind, content, emoticonRes string) (Payload, error) {
	p := Payload{Type: kind, Content: content, EmoticonRes: emoticonRes}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Validate reports a *ValidationError when Type or Content is missing.
func (p Payload) Validate() error {
	if p.Type == "" || p.Content == "" {
		return NewValidationError("type and content are required")
	}
	return nil
}

// Data is the flat key/value form carried in the provider message.
func (p Payload) Data() map[string]string {
	return map[string]string{
		"type":        p.Type,
		"content":     p.Content,
		"emoticonRes": p.EmoticonRes,
	}
}

// Request is one delivery request: one token, one payload.
type Request struct {
	Token    string
	Payload  Payload
	Priority string
}

// Result is the per-item answer from a BatchProvider.
// Exactly one of ID or Err is meaningful.
type Result struct {
	ID  string
	Err error
}

// Outcome is the result of one delivery attempt for one recipient.
type Outcome struct {
	Token  string
	Result string
	Error  *DeliveryError
}

// Succeeded reports whether the provider accepted the request.
func (o Outcome) Succeeded() bool {
	return o.Error == nil
}

// Report aggregates every Outcome of one dispatch call, in snapshot order.
type Report struct {
	SuccessCount int
	FailureCount int
	Outcomes     []Outcome
}
