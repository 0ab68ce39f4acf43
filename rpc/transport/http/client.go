package http

import (
	"bytes"
	"context"
	"fmt"
	"github.com/tenkdog/jarvis/rpc/common"
	"github.com/tenkdog/jarvis/rpc/transport"
	"golang.org/x/time/rate"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

func NewHttpClientTransport() transport.IRESTClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	baseURL    *url.URL
	client     *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	retryCount int
	authHeader string
	userAgent  string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRESTClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	// Parse the base url
	baseURL, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return err
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return fmt.Errorf("invalid base url %q", config.BaseURL)
	}

	// Create client with default transport, the timeout covers the whole exchange
	client := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Requests per second, an unset rate disables limiting
	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), max(1, config.RateBurst))
	}

	t.baseURL = baseURL
	t.client = client
	t.limiter = limiter
	t.timeout = config.Timeout
	t.retryCount = max(1, config.RetryCount)
	t.userAgent = config.UserAgent
	t.authHeader = ""
	if config.Token != "" {
		t.authHeader = "token " + config.Token
	}

	// No error
	return nil
}

func (t *httpClientTransport) Do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	// Check if the transport is initialized
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	requestURL, sameHost := t.resolve(req.Path)

	// The timeout bounds the whole call, retries and rate limit wait included
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	// Send the request (with retries). Only failures to reach the remote are retried.
	var err error
	for i := 0; i < t.retryCount; i++ {
		if err = t.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		var resp *transport.Response
		resp, err = t.send(ctx, requestURL, sameHost, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			break
		}
		Logger.Debugf("%s %s failed (attempt %d/%d): %v", req.Method, req.Path, i+1, t.retryCount, err)
	}
	return nil, err
}

func (t *httpClientTransport) Close() error {
	// Close the client
	if t.client != nil {
		t.client.CloseIdleConnections()
	}

	// Reset the client
	t.client = nil
	t.baseURL = nil
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// resolve builds the request url. Absolute urls are used as they are, the returned flag
// reports whether the url points to the configured host.
func (t *httpClientTransport) resolve(path string) (string, bool) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u, err := url.Parse(path)
		return path, err == nil && u.Host == t.baseURL.Host
	}
	return t.baseURL.String() + "/" + strings.TrimLeft(path, "/"), true
}

// send executes a single attempt of req. Credentials are only sent to the configured host.
func (t *httpClientTransport) send(ctx context.Context, requestURL string, sameHost bool, req transport.Request) (*transport.Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, req.Method, requestURL, body)
	if err != nil {
		return nil, err
	}
	if t.authHeader != "" && sameHost {
		httpRequest.Header.Set("Authorization", t.authHeader)
	}
	if t.userAgent != "" {
		httpRequest.Header.Set("User-Agent", t.userAgent)
	}
	if req.Body != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Header {
		httpRequest.Header.Set(k, v)
	}

	httpResponse, err := t.client.Do(httpRequest)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	respBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, err
	}

	return &transport.Response{
		StatusCode: httpResponse.StatusCode,
		Header:     httpResponse.Header,
		Body:       respBody,
	}, nil
}
