// Package stream resolves track ids into authorized, playable stream
// URLs. Tokens are short-lived and single-use: every resolve requests a
// fresh one, nothing is cached across attempts.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrAuthorization marks failures to obtain a stream token: expired
// session, network failure, or server rejection. The engine binding
// keys its one-shot recovery on this mark.
var ErrAuthorization = errors.New("stream authorization failed")

// Source is a ready-to-play stream with current authorization embedded.
// The expiry is implicit in the token; a Source must be used for exactly
// one playback attempt.
type Source struct {
	TrackID string
	URL     string
}

// CredentialSource supplies the session bearer credential for outbound
// calls. The resolver reads it, it never owns it.
type CredentialSource interface {
	Credential() (string, bool)
}

// Config represents resolver configuration.
type Config struct {
	BaseURL      string
	TokenTimeout time.Duration // Per token request; zero means 10s
}

// Resolver exchanges a track id for an authorized stream URL.
type Resolver struct {
	baseURL      string
	httpClient   *http.Client
	creds        CredentialSource
	delivery     Delivery
	tokenTimeout time.Duration
}

// NewResolver creates a resolver using the given delivery variant.
func NewResolver(cfg Config, creds CredentialSource, delivery Delivery) (*Resolver, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("resource service base URL is required")
	}
	if delivery == nil {
		return nil, errors.New("delivery variant is required")
	}

	timeout := cfg.TokenTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Resolver{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		creds:        creds,
		delivery:     delivery,
		tokenTimeout: timeout,
	}, nil
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Resolve requests a fresh token scoped to trackID and builds the
// playable URL. Safe to call again at any time for the same or another
// track; a previous token is never reused.
func (r *Resolver) Resolve(ctx context.Context, trackID string) (Source, error) {
	ctx, cancel := context.WithTimeout(ctx, r.tokenTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/stream/token/%s", r.baseURL, url.PathEscape(trackID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Source{}, errors.Mark(errors.Wrap(err, "failed to build token request"), ErrAuthorization)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.creds != nil {
		if cred, ok := r.creds.Credential(); ok {
			req.Header.Set("Authorization", "Bearer "+cred)
		}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Source{}, errors.Mark(errors.Wrap(err, "token request failed"), ErrAuthorization)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Source{}, errors.Mark(
			errors.Newf("token request rejected: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body))),
			ErrAuthorization)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Source{}, errors.Mark(errors.Wrap(err, "failed to decode token response"), ErrAuthorization)
	}
	if tr.Token == "" {
		return Source{}, errors.Mark(errors.New("token response is empty"), ErrAuthorization)
	}

	zlog.Debug().Msgf("stream: resolved track=%s", trackID)

	return Source{
		TrackID: trackID,
		URL:     r.delivery.StreamURL(r.baseURL, trackID, tr.Token),
	}, nil
}
