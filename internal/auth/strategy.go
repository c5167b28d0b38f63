// Package auth negotiates the authentication method used to reach a Chroma server.
//
// Callers hand in a loosely-typed payload (decoded JSON or YAML) and get back
// one of a closed set of strategies. Parsing is all-or-nothing: a payload that
// names a method but misses one of its fields yields an error, never a
// best-effort strategy.
package auth

import "net/http"

// Method identifies a negotiated strategy.
type Method string

const (
	MethodNone  Method = "no_auth"
	MethodBasic Method = "basic_auth"
	MethodToken Method = "token_auth"
)

// TokenHeader is the HTTP header a token is sent in.
type TokenHeader string

const (
	// HeaderAuthorization sends the token as "Authorization: Bearer <token>".
	HeaderAuthorization TokenHeader = "Authorization"
	// HeaderChromaToken sends the raw token in "X-Chroma-Token".
	HeaderChromaToken TokenHeader = "X-Chroma-Token"
)

// Strategy is an authentication method applied to every outgoing request.
//
// The set of implementations is closed: None, BasicAuth and TokenAuth.
type Strategy interface {
	// Method returns the tag the strategy was negotiated from.
	Method() Method

	// Apply sets the credentials on req. It never fails.
	Apply(req *http.Request)

	// String describes the strategy without revealing credentials.
	String() string

	sealed()
}

// None sends no credentials.
type None struct{}

func (None) Method() Method          { return MethodNone }
func (None) Apply(req *http.Request) {}
func (None) String() string          { return "no_auth" }
func (None) sealed()                 {}

// BasicAuth sends HTTP basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

func (BasicAuth) Method() Method { return MethodBasic }

func (b BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(b.Username, b.Password)
}

func (b BasicAuth) String() string {
	return "basic_auth(user=" + b.Username + ")"
}

func (BasicAuth) sealed() {}

// TokenAuth sends a static token in the configured header.
type TokenAuth struct {
	Header TokenHeader
	Token  string
}

func (TokenAuth) Method() Method { return MethodToken }

func (t TokenAuth) Apply(req *http.Request) {
	switch t.Header {
	case HeaderAuthorization:
		req.Header.Set(string(HeaderAuthorization), "Bearer "+t.Token)
	default:
		req.Header.Set(string(t.Header), t.Token)
	}
}

func (t TokenAuth) String() string {
	return "token_auth(header=" + string(t.Header) + ")"
}

func (TokenAuth) sealed() {}
