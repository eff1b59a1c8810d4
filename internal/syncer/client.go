// Package syncer keeps the local document and the server in step.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/migration"
)

const (
	exportPath = "/api/v1/migration/export"
	importPath = "/api/v1/migration/import"
	healthPath = "/api/v1/health"

	userAgent = "hmp/1"

	retryMaxElapsed = 10 * time.Second

	// Longer than the server's write timeout so a slow import is not
	// abandoned while it is still running.
	requestTimeout = 90 * time.Second
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrMissingToken = errors.New("missing access token")
)

// StatusError is a non-2xx server response.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d (%s): %s", e.Status, e.Code, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// Remote is the server side of a sync.
type Remote interface {
	Export(ctx context.Context, token string) (*legacy.Document, error)
	Import(ctx context.Context, token string, body []byte) (*migration.Summary, error)
}

// Client talks to the migration endpoints. Export and Import are sent once;
// a failure goes back to the orchestrator, which keeps the local document.
// Only the health probe retries transport failures and 5xx responses.
type Client struct {
	base string
	http *http.Client
	log  logrus.FieldLogger

	// NewBackOff returns the retry policy for the health probe.
	NewBackOff func() backoff.BackOff
}

// NewClient creates a client for the server at base.
func NewClient(base string, httpClient *http.Client, log logrus.FieldLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: httpClient,
		log:  log,
		NewBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = retryMaxElapsed
			return bo
		},
	}
}

// Base returns the server base URL.
func (c *Client) Base() string { return c.base }

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type exportBody struct {
	Data json.RawMessage `json:"data"`
}

type importBody struct {
	OK      bool               `json:"ok"`
	Summary *migration.Summary `json:"summary"`
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte, retry bool) ([]byte, error) {
	var out []byte
	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !retry {
				return backoff.Permanent(err)
			}
			c.log.WithError(err).WithField("path", path).Warn("request failed, retrying")
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("failed to read response: %w", err)
			if !retry {
				return backoff.Permanent(err)
			}
			return err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			out = data
			return nil
		}

		se := &StatusError{Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			se.Code, se.Message = eb.Error, eb.Message
		}
		if retry && resp.StatusCode >= 500 {
			c.log.WithField("status", resp.StatusCode).WithField("path", path).Warn("server error, retrying")
			return se
		}
		return backoff.Permanent(se)
	}

	policy := backoff.BackOff(&backoff.StopBackOff{})
	if retry {
		policy = c.NewBackOff()
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

// Export fetches the caller's dataset.
func (c *Client) Export(ctx context.Context, token string) (*legacy.Document, error) {
	data, err := c.do(ctx, http.MethodGet, exportPath, token, nil, false)
	if err != nil {
		return nil, err
	}
	var body exportBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to decode export response: %w", err)
	}
	doc, err := legacy.Decode(body.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exported document: %w", err)
	}
	return doc, nil
}

// Import sends an encoded document and returns the server's summary.
func (c *Client) Import(ctx context.Context, token string, doc []byte) (*migration.Summary, error) {
	data, err := c.do(ctx, http.MethodPost, importPath, token, doc, false)
	if err != nil {
		return nil, err
	}
	var body importBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to decode import response: %w", err)
	}
	if !body.OK {
		return body.Summary, errors.New("server did not acknowledge the import")
	}
	return body.Summary, nil
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, healthPath, "", nil, true)
	return err
}
