package chroma

import (
	chromav2 "github.com/amikos-tech/chroma-go/pkg/api/v2"

	"github.com/fyrsmithlabs/chromagate/internal/auth"
)

// credentialOptions maps a negotiated strategy onto chroma-go's credential
// providers. None adds nothing.
func credentialOptions(s auth.Strategy) []chromav2.ClientOption {
	switch s := s.(type) {
	case auth.BasicAuth:
		return []chromav2.ClientOption{
			chromav2.WithAuth(chromav2.NewBasicAuthCredentialsProvider(s.Username, s.Password)),
		}
	case auth.TokenAuth:
		header := chromav2.AuthorizationTokenHeader
		if s.Header == auth.HeaderChromaToken {
			header = chromav2.XChromaTokenHeader
		}
		return []chromav2.ClientOption{
			chromav2.WithAuth(chromav2.NewTokenAuthCredentialsProvider(s.Token, header)),
		}
	default:
		return nil
	}
}
