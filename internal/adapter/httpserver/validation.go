package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/lead-intel/internal/domain"
)

// ValidationError describes one rejected field of a request body.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New()
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// acceptsJSON reports whether the client can take a JSON answer.
func acceptsJSON(r *http.Request) bool {
	a := r.Header.Get("Accept")
	return a == "" || strings.Contains(a, "*/*") || strings.Contains(a, "application/json")
}

// decodeRequest reads a size-capped JSON body into dst and validates it.
// It writes the error response itself and reports whether the handler may go on.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !acceptsJSON(r) {
		writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
			Code:    "INVALID_ARGUMENT",
			Message: "not acceptable",
			Details: map[string]any{"accept": r.Header.Get("Accept")},
		}})
		return false
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		writeError(w, r, fmt.Errorf("%w: content-type must be application/json", domain.ErrInvalidArgument), nil)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes())
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
				Code:    "INVALID_ARGUMENT",
				Message: "payload too large",
				Details: map[string]any{"max_bytes": tooLarge.Limit},
			}})
		case errors.Is(err, io.EOF):
			writeError(w, r, fmt.Errorf("%w: empty body", domain.ErrInvalidArgument), nil)
		default:
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), map[string]string{"decode": err.Error()})
		}
		return false
	}
	if err := getValidator().StructCtx(r.Context(), dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationErrors(err))
		return false
	}
	return true
}

func (s *Server) maxBodyBytes() int64 {
	if s.Cfg.MaxBodyKB <= 0 {
		return 512 << 10
	}
	return int64(s.Cfg.MaxBodyKB) << 10
}

// validationErrors flattens validator output into field-level errors.
func validationErrors(err error) []ValidationError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []ValidationError{{Field: "body", Code: "INVALID", Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, ValidationError{
			Field:   fieldPath(fe.Namespace()),
			Code:    codeForTag(fe.Tag()),
			Message: messageFor(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name: "LeadScoringPayload.leads[0].id" becomes "leads[0].id".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func codeForTag(tag string) string {
	switch tag {
	case "required":
		return "REQUIRED"
	case "max", "lte":
		return "TOO_LONG"
	case "min", "gte":
		return "TOO_SHORT"
	case "email", "oneof":
		return "INVALID_FORMAT"
	default:
		return "INVALID"
	}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
