package queryapi

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// exceededMaximumMessage is the substring of the bad_data error
// Thanos emits when a query would return more points per series than
// the backend allows.
const exceededMaximumMessage = "exceeded maximum resolution"

const maxAttempts = 3

// NewHTTPClient builds the *http.Client used for every query_range
// request, loading the optional client certificate for mTLS.
func NewHTTPClient(certPath string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{}

	if certPath != "" {
		pemBlock, err := os.ReadFile(certPath)
		if err != nil {
			return nil, fmt.Errorf("queryapi: reading client certificate %q: %w", certPath, err)
		}

		cert, err := tls.X509KeyPair(pemBlock, pemBlock)
		if err != nil {
			return nil, fmt.Errorf("queryapi: parsing client certificate %q: %w", certPath, err)
		}

		transport.TLSClientConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

// Execute issues one query_range request, retrying transient
// connection failures up to three total attempts and classifying the
// response into a success, exceeded, or empty result.
func Execute(ctx context.Context, logger log.Logger, client *http.Client, spec QuerySpec) RawResult {
	url := spec.BaseURL + spec.targetOrDefault()
	params := spec.buildParams()

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, readErr, doErr := doRequest(ctx, client, url, params)
		if doErr != nil {
			lastErr = doErr
			level.Debug(logger).Log("msg", "query_range request failed, retrying", "attempt", attempt, "err", doErr)
			continue
		}
		if readErr != nil {
			level.Warn(logger).Log("msg", "query_range response body truncated", "err", readErr)
			return Exceeded()
		}

		return classifyBody(logger, resp)
	}

	level.Warn(logger).Log("msg", "query_range request exhausted retries", "err", lastErr)
	return Empty()
}

// doRequest performs a single HTTP round trip and reads the full
// body. doErr distinguishes connect/TLS/generic connection failures
// (retryable) from a body read failure (read-timeout-like, treated as
// truncation and not retried).
func doRequest(ctx context.Context, client *http.Client, target string, params map[string]string) (body []byte, readErr, doErr error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, err, nil
	}

	return body, nil, nil
}

// classifyBody applies the JSON-decode/status/errorType branches of
// the classification table to an already-read response body.
func classifyBody(logger log.Logger, body []byte) RawResult {
	status, errorType, errMsg, series, err := decodeBody(body)
	if err != nil {
		level.Warn(logger).Log("msg", "query_range response was not valid JSON", "err", err)
		return Empty()
	}

	switch status {
	case "success":
		return Success(series)
	case "error":
		if errorType == "bad_data" && strings.Contains(errMsg, exceededMaximumMessage) {
			return Exceeded()
		}
		return Empty()
	default:
		return Empty()
	}
}

// FormatTimestamp renders a UNIX-seconds float as the string form
// query_range expects in its start/end parameters.
func FormatTimestamp(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
