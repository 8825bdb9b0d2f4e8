// internal/verify/client.go
//
// HTTP client for the remote code-judging service.
// Endpoints (relative to the configured base URL):
//   - POST /ai/verify-code → {correct, message}
//   - POST /ai/debug-code  → {feedback}
//
// Every request carries a short-lived HS256 service token as a bearer
// credential. A non-2xx status or an undecodable body is a transport
// failure and is returned as an error; a negative verdict is not an error.

package verify

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

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable matches every failure to get an answer from the service:
// transport errors, non-2xx statuses and undecodable bodies.
var ErrUnavailable = errors.New("verifier unavailable")

// Request is what the verifier judges.
type Request struct {
	Code           string `json:"code"`
	Language       string `json:"language"`
	Description    string `json:"problemDescription"`
	ExpectedOutput string `json:"expectedOutput,omitempty"`
}

// Verdict is the verifier's judgment.
type Verdict struct {
	Correct bool   `json:"correct"`
	Message string `json:"message,omitempty"`
}

// Diagnosis is free-text debugging feedback.
type Diagnosis struct {
	Feedback string `json:"feedback,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Client talks to the judging service.
type Client struct {
	base     string
	secret   []byte
	subject  string
	http     *http.Client
	tokenTTL time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithSubject sets the "id" claim of the service token.
func WithSubject(sub string) Option { return func(c *Client) { c.subject = sub } }

// NewClient builds a client for baseURL (e.g. http://localhost:3001/api).
func NewClient(baseURL, secret string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		base:     strings.TrimRight(baseURL, "/"),
		secret:   []byte(secret),
		subject:  "puzzle-engine",
		http:     &http.Client{Timeout: timeout},
		tokenTTL: 5 * time.Minute,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Verify asks whether req.Code solves the described problem.
func (c *Client) Verify(ctx context.Context, req Request) (Verdict, error) {
	var v Verdict
	if err := c.post(ctx, "/ai/verify-code", req, &v); err != nil {
		return Verdict{}, err
	}
	return v, nil
}

// Debug asks for a hint about what is wrong with req.Code. ExpectedOutput
// is not sent.
func (c *Client) Debug(ctx context.Context, req Request) (Diagnosis, error) {
	req.ExpectedOutput = ""
	var d Diagnosis
	if err := c.post(ctx, "/ai/debug-code", req, &d); err != nil {
		return Diagnosis{}, err
	}
	return d, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tok, err := c.token()
	if err != nil {
		return fmt.Errorf("sign service token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w: %w", path, ErrUnavailable, err)
	}
	defer res.Body.Close()
	log.Debug().Str("path", path).Int("status", res.StatusCode).Dur("took", time.Since(start)).Msg("verifier call")

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		_ = json.Unmarshal(raw, &e)
		if e.Error == "" {
			e.Error = http.StatusText(res.StatusCode)
		}
		return &StatusError{Code: res.StatusCode, Message: e.Error}
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w: %w", path, ErrUnavailable, err)
	}
	return nil
}

func (c *Client) token() (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  c.subject,
		"iat": now.Unix(),
		"exp": now.Add(c.tokenTTL).Unix(),
	})
	return t.SignedString(c.secret)
}

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("verifier status %d: %s", e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool { return target == ErrUnavailable }
