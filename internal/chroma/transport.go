package chroma

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chromagate/internal/logging"
)

type responseRecordKey struct{}

// responseRecord collects what recordingTransport saw for the requests of
// one call. The session lock serializes calls, so a record is never shared.
type responseRecord struct {
	keepBody bool

	body   []byte
	apiErr *APIError
}

func withResponseRecord(ctx context.Context, rec *responseRecord) context.Context {
	return context.WithValue(ctx, responseRecordKey{}, rec)
}

// recordingTransport logs each request at trace level and, for requests
// whose context carries a responseRecord, keeps error responses and
// optionally successful bodies. Headers are never logged.
type recordingTransport struct {
	base   http.RoundTripper
	logger *logging.Logger
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Trace(ctx, "chroma request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	t.logger.Trace(ctx, "chroma request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	rec, _ := ctx.Value(responseRecordKey{}).(*responseRecord)
	success := resp.StatusCode >= 200 && resp.StatusCode <= 299
	if rec == nil || (success && !rec.keepBody) {
		return resp, nil
	}

	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	if success {
		rec.body = raw
	} else {
		rec.apiErr = newAPIError(resp.StatusCode, raw)
	}
	return resp, nil
}
