package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"finboard/internal/log"
)

// Client sends requests to the backend REST API. It resolves relative paths
// against the configured base URL, serializes JSON bodies, attaches bearer
// tokens, and turns non-2xx responses into *APIError values.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	metrics    *Metrics
}

// RequestOptions control a single API request.
type RequestOptions struct {
	Method string // defaults to GET
	Body   any
	Token  string
	Header http.Header
}

// NewClient creates a client for the given base URL. A nil httpClient falls
// back to a pooled default transport; a nil logger falls back to the default
// configuration.
func NewClient(baseURL string, httpClient *http.Client, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = newPooledHTTPClient()
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.WithComponent(log.ComponentAPI),
	}
}

// SetRateLimit caps outbound requests per second. Zero disables limiting.
func (c *Client) SetRateLimit(rps float64) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
}

// SetMetrics attaches a metrics collector to the client.
func (c *Client) SetMetrics(m *Metrics) {
	c.metrics = m
}

// newPooledHTTPClient builds an HTTP client with connection pooling and
// conservative timeouts for repeated calls against a single API host.
func newPooledHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// resolvePath joins path with the base URL unless path is already absolute.
func (c *Client) resolvePath(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Request performs an API call and returns the raw success payload together
// with a flag reporting whether the response declared a JSON content type.
// A 204 response yields a nil payload. Non-2xx statuses yield an *APIError;
// transport failures propagate unchanged.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions) ([]byte, bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false, err
		}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, false, err
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolvePath(path), bodyReader)
	if err != nil {
		return nil, false, err
	}
	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if opts.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	requestID := uuid.NewString()
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "API request failed",
			log.FieldRequestID, requestID,
			log.FieldMethod, method,
			log.FieldPath, path,
			log.FieldError, err.Error())
		if c.metrics != nil {
			c.metrics.RecordTransportError(method)
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	c.logger.DebugContext(ctx, "API request completed",
		log.FieldRequestID, requestID,
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatus, resp.StatusCode,
		log.FieldDuration, duration.Milliseconds())
	if c.metrics != nil {
		c.metrics.RecordRequest(method, resp.StatusCode, duration)
	}

	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")

	var payload []byte
	if resp.StatusCode != http.StatusNoContent {
		// Read failures on the body degrade to an absent payload.
		payload, _ = io.ReadAll(resp.Body)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, newErrorFromResponse(resp.StatusCode, resp.Status, payload, isJSON)
	}

	return payload, isJSON, nil
}

// newErrorFromResponse builds an APIError from an error response body.
func newErrorFromResponse(statusCode int, status string, payload []byte, isJSON bool) *APIError {
	fallback := http.StatusText(statusCode)
	if idx := strings.IndexByte(status, ' '); idx >= 0 {
		if s := strings.TrimSpace(status[idx+1:]); s != "" {
			fallback = s
		}
	}
	if fallback == "" {
		fallback = "request failed"
	}

	var decoded any
	if len(payload) > 0 {
		if isJSON {
			if err := json.Unmarshal(payload, &decoded); err != nil {
				decoded = nil
			}
		} else {
			decoded = string(payload)
		}
	}

	message := messageFromPayload(decoded, fallback)

	var details any
	switch decoded.(type) {
	case string, map[string]any, []any:
		details = decoded
	}

	return &APIError{Status: statusCode, Message: message, Details: details}
}

// Do performs an API call and decodes the JSON success payload into T.
// Empty and undecodable payloads yield the zero value rather than an error.
func Do[T any](ctx context.Context, c *Client, path string, opts RequestOptions) (T, error) {
	var result T
	payload, isJSON, err := c.Request(ctx, path, opts)
	if err != nil {
		return result, err
	}
	if len(payload) == 0 || !isJSON {
		return result, nil
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		var zero T
		return zero, nil
	}
	return result, nil
}
