package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/ThalitaPinheiro/defacto/internal/spec"
)

// ErrorHandler receives errors raised while recording an exchange. The
// response handed to the caller is never affected by them.
type ErrorHandler func(ctx context.Context, err error)

// Transport is an http.RoundTripper that records exchanges addressed to the
// recorder's target and passes everything else straight through.
//
// Each call carries its own captured request, so overlapping requests never
// see each other's bodies.
type Transport struct {
	base    http.RoundTripper
	rec     *Recorder
	onError ErrorHandler
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithErrorHandler replaces the default handler, which logs the error.
func WithErrorHandler(h ErrorHandler) TransportOption {
	return func(t *Transport) { t.onError = h }
}

// NewTransport wraps base; a nil base means http.DefaultTransport.
func NewTransport(base http.RoundTripper, rec *Recorder, opts ...TransportOption) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{base: base, rec: rec}
	t.onError = func(ctx context.Context, err error) {
		rec.logger.Error("record exchange", "exchange", exchangeID(ctx), "err", err)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewClient returns an http.Client whose transport records exchanges.
func NewClient(rec *Recorder, base http.RoundTripper, opts ...TransportOption) *http.Client {
	return &http.Client{Transport: NewTransport(base, rec, opts...)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.rec.target.Matches(req) {
		return t.base.RoundTrip(req)
	}

	ctx := withExchangeID(req.Context(), uuid.NewV4().String())
	reqBody, out, err := captureRequestBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return resp, err
	}

	ex := spec.Exchange{
		Method:      req.Method,
		Path:        req.URL.Path,
		RawQuery:    req.URL.RawQuery,
		RequestBody: reqBody,
		Status:      resp.StatusCode,
	}
	body := resp.Body
	if body == nil {
		body = http.NoBody
	}
	resp.Body = &capturingBody{rc: body, done: func(b []byte) {
		ex.ResponseBody = b
		if err := t.rec.Record(ctx, ex); err != nil {
			t.onError(ctx, err)
		}
	}}
	return resp, nil
}

// captureRequestBody returns a copy of the request body and the request to
// dispatch. The caller's request is only replaced when its body had to be
// consumed.
func captureRequestBody(req *http.Request) ([]byte, *http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, req, nil
	}
	if req.GetBody != nil {
		rc, err := req.GetBody()
		if err != nil {
			_ = req.Body.Close()
			return nil, nil, fmt.Errorf("capture: copy request body: %w", err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil, nil, fmt.Errorf("capture: read request body: %w", err)
		}
		return b, req, nil
	}

	b, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("capture: read request body: %w", err)
	}
	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(b))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	return b, out, nil
}

// capturingBody streams the response to the caller while keeping a copy.
// done runs once, when the underlying body reports EOF and before the
// caller sees it. Closing early drains what is left, so a caller that stops
// reading after the last JSON value still gets its exchange recorded; a body
// that fails before EOF never is.
type capturingBody struct {
	rc       io.ReadCloser
	buf      bytes.Buffer
	once     sync.Once
	done     func([]byte)
	complete bool
}

func (c *capturingBody) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	c.buf.Write(p[:n])
	if err == io.EOF {
		c.finish()
	}
	return n, err
}

func (c *capturingBody) Close() error {
	if !c.complete {
		if _, err := io.Copy(&c.buf, c.rc); err == nil {
			c.finish()
		}
	}
	return c.rc.Close()
}

func (c *capturingBody) finish() {
	c.once.Do(func() {
		c.complete = true
		c.done(c.buf.Bytes())
	})
}
