package auth

import (
	"errors"
	"fmt"
)

// Payload field names.
const (
	FieldAuthMethod = "authMethod"
	FieldUsername   = "username"
	FieldPassword   = "password"
	FieldTokenType  = "tokenType"
	FieldToken      = "token"
)

// Token types accepted in the tokenType field.
const (
	TokenTypeBearer       = "bearer"
	TokenTypeXChromaToken = "x_chroma_token"
)

// ErrNegotiation is matched by every error Negotiate returns.
var ErrNegotiation = errors.New("auth negotiation failed")

// NegotiationError describes why a payload could not be turned into a Strategy.
type NegotiationError struct {
	// Field is the payload key at fault. Empty when the payload itself is unusable.
	Field  string
	Reason string
}

func (e *NegotiationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrNegotiation, e.Reason)
	}
	return fmt.Sprintf("%s: field %q %s", ErrNegotiation, e.Field, e.Reason)
}

// Is reports ErrNegotiation as the error's kind.
func (e *NegotiationError) Is(target error) bool {
	return target == ErrNegotiation
}

// Negotiate parses payload into exactly one Strategy.
//
// The authMethod field selects the variant; every field that variant needs must
// be present and be a string. Anything else fails the whole negotiation.
func Negotiate(payload map[string]any) (Strategy, error) {
	if payload == nil {
		return nil, &NegotiationError{Reason: "payload is missing"}
	}

	method, err := stringField(payload, FieldAuthMethod)
	if err != nil {
		return nil, err
	}

	switch Method(method) {
	case MethodNone:
		return None{}, nil

	case MethodBasic:
		username, err := stringField(payload, FieldUsername)
		if err != nil {
			return nil, err
		}
		password, err := stringField(payload, FieldPassword)
		if err != nil {
			return nil, err
		}
		return BasicAuth{Username: username, Password: password}, nil

	case MethodToken:
		tokenType, err := stringField(payload, FieldTokenType)
		if err != nil {
			return nil, err
		}
		header, err := headerFor(tokenType)
		if err != nil {
			return nil, err
		}
		token, err := stringField(payload, FieldToken)
		if err != nil {
			return nil, err
		}
		return TokenAuth{Header: header, Token: token}, nil

	default:
		return nil, &NegotiationError{
			Field:  FieldAuthMethod,
			Reason: fmt.Sprintf("has unsupported value %q (expected %s, %s or %s)", method, MethodNone, MethodBasic, MethodToken),
		}
	}
}

// NegotiateOptional treats a nil payload as "no authentication" and otherwise
// defers to Negotiate. An empty but non-nil payload still fails, and so does
// any payload that is not a JSON object.
func NegotiateOptional(payload any) (Strategy, error) {
	switch p := payload.(type) {
	case nil:
		return None{}, nil
	case map[string]any:
		if p == nil {
			return None{}, nil
		}
		return Negotiate(p)
	default:
		return nil, &NegotiationError{Reason: fmt.Sprintf("payload must be an object, got %T", payload)}
	}
}

func headerFor(tokenType string) (TokenHeader, error) {
	switch tokenType {
	case TokenTypeBearer:
		return HeaderAuthorization, nil
	case TokenTypeXChromaToken:
		return HeaderChromaToken, nil
	default:
		return "", &NegotiationError{
			Field:  FieldTokenType,
			Reason: fmt.Sprintf("has unsupported value %q (expected %s or %s)", tokenType, TokenTypeBearer, TokenTypeXChromaToken),
		}
	}
}

func stringField(payload map[string]any, key string) (string, error) {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return "", &NegotiationError{Field: key, Reason: "is required"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &NegotiationError{Field: key, Reason: fmt.Sprintf("must be a string, got %T", raw)}
	}
	return s, nil
}
