// Package cloud talks to the remote approval service.
//
// One POST is made per review, with a bearer token and the caller's
// deadline. There are no retries; any failure is reported to the caller,
// which treats it as a denial.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/dgerlanc/mayi/internal/constants"
	"github.com/dgerlanc/mayi/internal/logger"
)

// ErrRejected is returned for a non-success HTTP status.
var ErrRejected = errors.New("approval service rejected the request")

// Request is the approval request body.
type Request struct {
	ToolName     string          `json:"toolName"`
	Args         json.RawMessage `json:"args"`
	SlackChannel string          `json:"slackChannel,omitempty"`
	Context      RequestContext  `json:"context"`
}

// RequestContext describes where the call originates.
type RequestContext struct {
	Hostname string `json:"hostname"`
	Cwd      string `json:"cwd"`
	Platform string `json:"platform"`
}

// Response is the approval service's verdict.
type Response struct {
	Approved bool   `json:"approved"`
	Message  string `json:"message,omitempty"`
}

// CurrentContext describes the running process.
func CurrentContext() RequestContext {
	host, _ := os.Hostname()
	cwd, _ := os.Getwd()
	return RequestContext{Hostname: host, Cwd: cwd, Platform: runtime.GOOS}
}

// Client calls the approval endpoint.
type Client struct {
	http   *resty.Client
	apiURL string
	apiKey string
}

// NewClient returns a Client posting to apiURL with apiKey as bearer token.
func NewClient(apiURL, apiKey string) *Client {
	http := resty.New().
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", constants.AppName)
	return &Client{http: http, apiURL: apiURL, apiKey: apiKey}
}

// RequestApproval posts req and waits for the verdict. The call is bounded
// by ctx; cancellation aborts the request.
func (c *Client) RequestApproval(ctx context.Context, req Request) (Response, error) {
	if len(req.Args) == 0 {
		req.Args = json.RawMessage("{}")
	}
	requestID := uuid.NewString()
	logger.Debug("requesting remote approval", "tool", req.ToolName, "url", c.apiURL, "request_id", requestID)

	var out Response
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetHeader("X-Request-ID", requestID).
		SetBody(req).
		SetResult(&out).
		ForceContentType("application/json").
		Post(c.apiURL)
	if err != nil {
		return Response{}, fmt.Errorf("approval request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return Response{}, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode())
	}
	logger.Debug("remote approval answered", "tool", req.ToolName, "approved", out.Approved, "request_id", requestID)
	return out, nil
}
