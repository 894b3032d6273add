package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultConnectTimeout = 2 * time.Second
	DefaultReadTimeout    = 3 * time.Second

	drainLimit = 4096
)

// Options configures a Client.
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// Transport overrides the dialing transport; timeouts are still enforced per request.
	Transport http.RoundTripper
	Tracer    trace.Tracer
}

// Client performs single GET lookups against peer services.
type Client struct {
	http           *http.Client
	connectTimeout time.Duration
	readTimeout    time.Duration
	tracer         trace.Tracer
}

// NewClient builds a client whose dialer honours the connect timeout and whose
// transport gives up waiting for response headers after the read timeout.
func NewClient(opts Options) *Client {
	connect := opts.ConnectTimeout
	if connect <= 0 {
		connect = DefaultConnectTimeout
	}
	read := opts.ReadTimeout
	if read <= 0 {
		read = DefaultReadTimeout
	}
	transport := opts.Transport
	if transport == nil {
		dialer := &net.Dialer{Timeout: connect}
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: read,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
		}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("storefront/remote")
	}
	return &Client{
		http:           &http.Client{Transport: transport},
		connectTimeout: connect,
		readTimeout:    read,
		tracer:         tracer,
	}
}

// URL joins a dependency base URL and a record id.
func URL(baseURL string, id int64) string {
	return strings.TrimRight(baseURL, "/") + "/" + strconv.FormatInt(id, 10)
}

// Fetch issues exactly one GET {baseURL}/{id} and decodes the JSON body into out.
func (c *Client) Fetch(ctx context.Context, baseURL string, id int64, out any) error {
	if id <= 0 {
		return ErrInvalidID
	}
	if ctx == nil {
		ctx = context.Background()
	}
	url := URL(baseURL, id)

	ctx, span := c.tracer.Start(ctx, "remote.fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", http.MethodGet),
		attribute.String("http.url", url),
		attribute.Int64("remote.id", id),
	)

	err := c.fetch(ctx, url, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) fetch(parent context.Context, url string, out any) error {
	ctx, cancel := context.WithTimeout(parent, c.connectTimeout+c.readTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &DecodeError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if parentErr := parent.Err(); parentErr != nil {
			return parentErr
		}
		return classifyTransport(url, err)
	}
	defer resp.Body.Close()

	trace.SpanFromContext(parent).SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.CopyN(io.Discard, resp.Body, drainLimit)
		return &HTTPError{URL: url, Status: resp.StatusCode}
	}

	dec := json.NewDecoder(resp.Body)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return c.bodyError(parent, ctx, url, err)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return &DecodeError{URL: url, Err: errNullBody}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			return &DecodeError{URL: url, Err: errTrailingData}
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return &DecodeError{URL: url, Err: errTrailingData}
		}
		return c.bodyError(parent, ctx, url, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{URL: url, Err: err}
	}
	return nil
}

// bodyError classifies a failure while reading a 2xx body.
func (c *Client) bodyError(parent, ctx context.Context, url string, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	var netErr net.Error
	if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return classifyTransport(url, context.DeadlineExceeded)
	}
	return &DecodeError{URL: url, Err: err}
}
