package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/fairyhunter13/lead-intel/pkg/textx"
)

// AIRequest is an immutable, fingerprinted request for one operation.
type AIRequest struct {
	id          string
	kind        OperationKind
	payload     any
	fingerprint string
}

// NewAIRequest builds a request and derives its fingerprint from the normalized payload.
func NewAIRequest(kind OperationKind, payload any) (AIRequest, error) {
	if !kind.Valid() {
		return AIRequest{}, fmt.Errorf("%w: unknown operation kind %q", ErrInvalidArgument, kind)
	}
	fp, err := Fingerprint(kind, payload)
	if err != nil {
		return AIRequest{}, err
	}
	return AIRequest{id: uuid.NewString(), kind: kind, payload: payload, fingerprint: fp}, nil
}

func (r AIRequest) ID() string          { return r.id }
func (r AIRequest) Kind() OperationKind { return r.kind }
func (r AIRequest) Payload() any        { return r.payload }
func (r AIRequest) Fingerprint() string { return r.fingerprint }

// Fingerprint returns the hex sha256 of kind plus the canonical JSON of the
// normalized payload. Payloads that differ only in whitespace runs or control
// characters share a fingerprint; case is significant.
func Fingerprint(kind OperationKind, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: payload not serializable: %v", ErrInvalidArgument, err)
	}
	// Round-trip through a generic value so map keys are sorted.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("%w: payload not serializable: %v", ErrInvalidArgument, err)
	}
	canon, err := json.Marshal(normalizeValue(generic))
	if err != nil {
		return "", fmt.Errorf("%w: payload not serializable: %v", ErrInvalidArgument, err)
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{'\n'})
	h.Write(canon)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return textx.CollapseSpace(textx.SanitizeText(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalizeValue(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}
