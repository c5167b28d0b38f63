package chroma

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	chromav2 "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

// collectionModel holds the configuration fields of a v2 collection object.
// chroma-go keeps configuration behind its own type, so they are read from
// the response body.
type collectionModel struct {
	ConfigurationJSON map[string]any `json:"configuration_json"`
	Configuration     map[string]any `json:"configuration"`
}

// getRequest is the body of POST .../collections/{id}/get.
type getRequest struct {
	IDs     []string  `json:"ids,omitempty"`
	Limit   *int      `json:"limit,omitempty"`
	Offset  *int      `json:"offset,omitempty"`
	Include []Include `json:"include"`
}

type httpCollection struct {
	client        *httpClient
	col           chromav2.Collection
	configuration map[string]any
}

// newHTTPCollection wraps col. body is the server's collection object;
// configuration_json (Chroma >= 0.6) wins over the older field.
func newHTTPCollection(client *httpClient, col chromav2.Collection, body []byte) *httpCollection {
	c := &httpCollection{client: client, col: col}
	var m collectionModel
	if len(body) > 0 && json.Unmarshal(body, &m) == nil {
		c.configuration = m.ConfigurationJSON
		if c.configuration == nil {
			c.configuration = m.Configuration
		}
	}
	return c
}

func (c *httpCollection) ID() string   { return c.col.ID() }
func (c *httpCollection) Name() string { return c.col.Name() }

func (c *httpCollection) Metadata() map[string]any {
	return jsonObject(c.col.Metadata())
}

func (c *httpCollection) Configuration() map[string]any {
	return c.configuration
}

func (c *httpCollection) Get(ctx context.Context, opts GetOptions) (*GetResult, error) {
	include := opts.Include
	if include == nil {
		include = []Include{}
	}
	body := getRequest{
		IDs:     opts.IDs,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		Include: include,
	}

	var result GetResult
	path := c.client.collectionsPath() + "/" + url.PathEscape(c.ID()) + "/get"
	if err := c.client.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// jsonObject converts a chroma-go value with a JSON form into a plain map.
// Values that do not encode to an object yield nil.
func jsonObject(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return nil
	}
	return m
}

var errNoEmbeddings = errors.New("chromagate does not embed documents")

// noEmbeddings is the embedding function of collections created here, so
// chroma-go never loads its default model.
type noEmbeddings struct{}

func (noEmbeddings) EmbedDocuments(context.Context, []string) ([]embeddings.Embedding, error) {
	return nil, errNoEmbeddings
}

func (noEmbeddings) EmbedQuery(context.Context, string) (embeddings.Embedding, error) {
	return nil, errNoEmbeddings
}

func (noEmbeddings) Name() string { return "none" }
