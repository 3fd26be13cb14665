// Package backend talks to the authoritative scheduling REST API. It only
// translates: wire shapes in, domain types out, HTTP statuses into the apperr
// taxonomy.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/identity"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/metrics"
)

const DefaultTimeout = 15 * time.Second

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration // ignored when HTTPClient is set
	// Location interprets the backend's naive timestamps.
	Location *time.Location
	// ServiceToken authenticates calls made without a user, e.g. room probes.
	ServiceToken string
	Metrics      *metrics.SchedulingMetrics
	Log          *logrus.Logger
}

type Client struct {
	base         *url.URL
	http         *http.Client
	loc          *time.Location
	serviceToken string
	metrics      *metrics.SchedulingMetrics
	log          *logrus.Logger
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("backend base url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend base url %q must be http or https", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Client{
		base:         base,
		http:         hc,
		loc:          loc,
		serviceToken: opts.ServiceToken,
		metrics:      opts.Metrics,
		log:          log,
	}, nil
}

func (c *Client) Location() *time.Location { return c.loc }

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	token  string
	role   identity.Role
}

// do runs one request and returns the raw success body.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	u := *c.base
	u.Path = c.base.Path + cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		buf, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", cl.op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	if cl.role != "" {
		req.Header.Set("X-User-Role", string(cl.role))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	c.metrics.ObserveRemoteCall(cl.op, elapsed.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrTransport, cl.op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", apperr.ErrTransport, cl.op, err)
	}

	c.log.WithFields(logrus.Fields{
		"op":          cl.op,
		"method":      cl.method,
		"path":        u.Path,
		"status":      resp.StatusCode,
		"duration_ms": elapsed.Milliseconds(),
	}).Debug("backend call")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}
	return nil, statusError(cl.op, resp.StatusCode, raw)
}

func (c *Client) asUser(p identity.Principal, cl call) call {
	cl.token = p.Token
	cl.role = p.Role
	return cl
}

// statusError maps a non-2xx reply into the apperr taxonomy.
func statusError(op string, status int, body []byte) error {
	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}

	var kind error
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = apperr.ErrValidation
	case http.StatusNotFound:
		kind = apperr.ErrNotFound
	case http.StatusConflict:
		kind = apperr.ErrConflict
	default:
		return fmt.Errorf("%w: %s: status %d: %s", apperr.ErrTransport, op, status, msg)
	}
	return fmt.Errorf("%w: %s", kind, msg)
}

// errorMessage reads NestJS style bodies where message is a string or a list.
func errorMessage(body []byte) string {
	var env struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return strings.TrimSpace(string(body))
	}

	var single string
	if err := json.Unmarshal(env.Message, &single); err == nil && single != "" {
		return single
	}
	var list []string
	if err := json.Unmarshal(env.Message, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return env.Error
}

func decode(op string, raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", apperr.ErrTransport, op, err)
	}
	return nil
}
