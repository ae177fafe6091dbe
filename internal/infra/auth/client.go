package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrRejected marks credential rejections (bad login, taken username).
var ErrRejected = errors.New("auth request rejected")

// Config represents auth client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration // Zero means 10s
}

// Client talks to the authentication service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *Store
}

// NewClient creates an auth client that writes obtained credentials
// into the given store.
func NewClient(cfg Config, store *Store) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("auth service base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		store:      store,
	}, nil
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges username/password for a session bearer credential and
// stores it. The service replies with either a bare token string or a
// {"token": ...} object; both are accepted.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := c.post(ctx, "/login", credentialsBody{Username: username, Password: password})
	if err != nil {
		return err
	}

	token := strings.TrimSpace(string(body))
	var parsed struct {
		Token string `json:"token"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Token != "" {
		token = parsed.Token
	} else if s := ""; json.Unmarshal(body, &s) == nil && s != "" {
		// A bare JSON string is also a valid reply.
		token = s
	}
	if token == "" {
		return errors.Mark(errors.New("login response contained no token"), ErrRejected)
	}

	c.store.Set(token)
	zlog.Info().Msgf("auth: session established for user=%s", username)
	return nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) error {
	_, err := c.post(ctx, "/register", credentialsBody{Username: username, Password: password})
	return err
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "auth request failed: %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Mark(
			errors.Newf("auth service returned status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body))),
			ErrRejected)
	}
	return body, nil
}
