// Package mlrelay forwards plant images to the disease detection model
// service and hands its JSON verdict back unchanged.
package mlrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"plantify/apperr"

	"go.uber.org/zap"
)

// FailureKind is the closed set of ways a prediction can fail
type FailureKind int

const (
	// Unreachable means the model service could not be contacted
	Unreachable FailureKind = iota
	// UpstreamError means the model service answered with a non-2xx status
	UpstreamError
	// LocalIO means the image could not be read or the reply decoded
	LocalIO
)

func (k FailureKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case UpstreamError:
		return "upstream_error"
	default:
		return "local_io"
	}
}

// Failure describes a failed prediction. Status is set for UpstreamError.
type Failure struct {
	Kind    FailureKind
	Status  int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("ml %s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("ml %s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// appError maps the failure onto the HTTP-facing error kinds
func (f *Failure) appError() error {
	switch f.Kind {
	case Unreachable:
		return &apperr.Error{Kind: apperr.KindUnavailable, Message: f.Message, Err: f}
	case UpstreamError:
		return &apperr.Error{Kind: apperr.KindUpstream, Message: f.Message, Status: f.Status, Err: f}
	default:
		return &apperr.Error{Kind: apperr.KindInternal, Message: f.Message, Status: http.StatusInternalServerError, Err: f}
	}
}

// Client talks to the model service predict endpoint
type Client struct {
	url    string
	http   *http.Client
	logger *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func NewClient(predictURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		url:    predictURL,
		http:   &http.Client{Timeout: timeout},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Predict posts the image at localPath as multipart field "file" and
// returns the decoded reply. The file is deleted on every path. Errors are
// *apperr.Error values wrapping a *Failure.
func (c *Client) Predict(ctx context.Context, localPath string) (map[string]interface{}, error) {
	defer func() {
		if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("could not delete temp file", zap.String("path", localPath), zap.Error(err))
		}
	}()

	result, f := c.predict(ctx, localPath)
	if f != nil {
		c.logger.Error("ml prediction failed",
			zap.Stringer("kind", f.Kind),
			zap.Int("status", f.Status),
			zap.Error(f.Err),
		)
		return nil, f.appError()
	}
	return result, nil
}

func (c *Client) predict(ctx context.Context, localPath string) (map[string]interface{}, *Failure) {
	body, contentType, err := encodeFile(localPath)
	if err != nil {
		return nil, &Failure{Kind: LocalIO, Message: "Could not read the uploaded image.", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, &Failure{Kind: LocalIO, Message: "Invalid ML service address.", Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Failure{
			Kind:    Unreachable,
			Message: fmt.Sprintf("Could not connect to the ML service at %s.", c.url),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Failure{Kind: Unreachable, Message: "ML service connection dropped.", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Failure{
			Kind:    UpstreamError,
			Status:  resp.StatusCode,
			Message: upstreamMessage(raw),
		}
	}

	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &Failure{Kind: LocalIO, Message: "ML service returned an unreadable reply.", Err: err}
	}
	return result, nil
}

func upstreamMessage(raw []byte) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	return "ML service returned an error."
}

func encodeFile(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
