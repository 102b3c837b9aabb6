// Package attendance submits a single attendance-marking request to the
// campus ERP on behalf of one stored session.
package attendance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/buckleypaul/rollcall/internal/errors"
	"github.com/buckleypaul/rollcall/internal/logger"
)

const (
	DefaultEndpoint  = "https://student.bennetterp.camu.in/api/Attendance/record-online-attendance"
	DefaultOrigin    = "https://student.bennetterp.camu.in"
	DefaultReferer   = "https://student.bennetterp.camu.in/v2/timetable"
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	// SessionCookie is the cookie the ERP reads the session from.
	SessionCookie = "connect.sid"

	tokenPreviewLen = 8
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	Endpoint   string
	Origin     string
	Referer    string
	UserAgent  string
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

// Client posts attendance requests. It never retries and sets no timeout of
// its own; a stalled remote stalls the caller.
type Client struct {
	http      *http.Client
	endpoint  string
	origin    string
	referer   string
	userAgent string
	log       *zap.SugaredLogger
}

// payload is the request body. Only the session's attendance id is sent;
// the student id variant of the API is not used.
type payload struct {
	AttendanceID string `json:"attendanceId"`
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	c := &Client{
		http:      opts.HTTPClient,
		endpoint:  opts.Endpoint,
		origin:    opts.Origin,
		referer:   opts.Referer,
		userAgent: opts.UserAgent,
		log:       opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.origin == "" {
		c.origin = DefaultOrigin
	}
	if c.referer == "" {
		c.referer = DefaultReferer
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.log == nil {
		c.log = logger.ComponentLogger("attendance")
	}
	return c
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Submit marks attendance for target using sessionToken. On a 2xx answer the
// response body is returned as-is; a body that is not JSON is returned as a
// JSON string. Failures are *TransportError or *RemoteRejectionError.
func (c *Client) Submit(ctx context.Context, target, sessionToken string) (json.RawMessage, error) {
	body, err := json.Marshal(payload{AttendanceID: target})
	if err != nil {
		return nil, errors.Wrap(err, "encode attendance payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build attendance request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Cookie", SessionCookie+"="+sessionToken)
	req.Header.Set("Origin", c.origin)
	req.Header.Set("Referer", c.referer)
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Debugw("submitting attendance",
		logger.FieldEndpoint, c.endpoint,
		logger.FieldTarget, target,
		logger.FieldToken, TokenPreview(sessionToken))

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnw("attendance request failed",
			logger.FieldTarget, target,
			logger.FieldToken, TokenPreview(sessionToken),
			logger.FieldError, err)
		return nil, &TransportError{Cause: err}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		respBody = nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Infow("attendance rejected",
			logger.FieldTarget, target,
			logger.FieldToken, TokenPreview(sessionToken),
			logger.FieldStatus, resp.StatusCode)
		return nil, &RemoteRejectionError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if readErr != nil {
		c.log.Warnw("attendance accepted but body unreadable",
			logger.FieldTarget, target,
			logger.FieldError, readErr)
	}

	c.log.Infow("attendance accepted",
		logger.FieldTarget, target,
		logger.FieldToken, TokenPreview(sessionToken),
		logger.FieldStatus, resp.StatusCode)

	if len(bytes.TrimSpace(respBody)) == 0 {
		return json.RawMessage("null"), nil
	}
	if json.Valid(respBody) {
		return json.RawMessage(respBody), nil
	}
	quoted, _ := json.Marshal(string(respBody))
	return json.RawMessage(quoted), nil
}

// TokenPreview returns a short prefix of a session token safe for logs and
// status lines.
func TokenPreview(token string) string {
	n := tokenPreviewLen
	if half := len(token) / 2; half < n {
		n = half
	}
	return token[:n] + "..."
}

// NormalizeIdentifier trims a scanned or typed attendance identifier and
// reports whether anything usable is left.
func NormalizeIdentifier(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	return id, id != ""
}
