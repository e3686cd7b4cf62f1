package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"

	"github.com/kailas-cloud/searchcore/internal/domain"
)

// ResponseError is a non-2xx cluster reply.
type ResponseError struct {
	Status int
	Type   string
	Reason string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("cluster status %d: %s: %s", e.Status, e.Type, e.Reason)
}

// IsNotFound reports whether err is a 404 reply.
func IsNotFound(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

// rejected turns a 400 reply to a compiled query into a QueryError on node.
func rejected(node string, err error) error {
	var re *ResponseError
	if errors.As(err, &re) && re.Status == http.StatusBadRequest {
		return domain.NewQueryError(node, "cluster rejected query: %s: %s", re.Type, re.Reason)
	}
	return err
}

// transient reports whether a reply status means the cluster is overloaded or down.
func transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// retryable reports whether a failed round-trip may be sent again: network errors and
// timeouts yes, a cancelled or expired caller context no.
func retryable(_ *http.Request, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// client is a thin JSON layer over the product-agnostic Elastic transport.
type client struct {
	tp *elastictransport.Client
}

func newClient(cfg Config) (*client, error) {
	urls := make([]*url.URL, 0, len(cfg.Addresses))
	for _, a := range cfg.Addresses {
		u, err := url.Parse(strings.TrimRight(a, "/"))
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", a, err)
		}
		urls = append(urls, u)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no cluster addresses")
	}

	tp, err := elastictransport.New(elastictransport.Config{
		URLs:                 urls,
		Username:             cfg.Username,
		Password:             cfg.Password,
		APIKey:               cfg.APIKey,
		Transport:            cfg.Transport,
		MaxRetries:    cfg.MaxRetries,
		RetryOnStatus: []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests},
		RetryOnError:  retryable,
	})
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	return &client{tp: tp}, nil
}

// do sends a JSON (or pre-encoded NDJSON) request and decodes a JSON reply into out.
// Transport failures and 429/5xx replies are BackendUnavailable; other non-2xx replies
// are *ResponseError.
func (c *client) do(ctx context.Context, op, method, path string, params url.Values, body, out any) error {
	var reader io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
		contentType = "application/x-ndjson"
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if len(params) > 0 {
		req.URL.RawQuery = params.Encode()
	}
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.tp.Perform(req)
	if err != nil {
		return domain.Unavailable(Name, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Unavailable(Name, op, fmt.Errorf("read reply: %w", err))
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		re := parseError(resp.StatusCode, raw)
		if transient(resp.StatusCode) {
			return domain.Unavailable(Name, op, re)
		}
		return fmt.Errorf("%s: %w", op, re)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%s: decode reply: %w", op, err)
		}
	}
	return nil
}

func parseError(status int, raw []byte) *ResponseError {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	re := &ResponseError{Status: status}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Error) == 0 {
		re.Reason = strings.TrimSpace(string(raw))
		return re
	}
	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body.Error, &detail); err != nil {
		// older replies carry a plain string
		var s string
		_ = json.Unmarshal(body.Error, &s)
		re.Reason = s
		return re
	}
	re.Type, re.Reason = detail.Type, detail.Reason
	return re
}
