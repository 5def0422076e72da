// Package presenter calls the external presenter service that decides
// whether a media blob may be served to a caller.
package presenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mediafs/mediad/pkg/media"
)

// checkPath is appended to the configured base URL for every check.
const checkPath = "/internal/presenter/check"

// Config describes how to reach the presenter.
type Config struct {
	// BaseURL is the presenter's root, e.g. "http://presenter:8080".
	BaseURL string
	// AuthHeader names the response header carrying the credential to
	// relay back to the caller. Defaults to media.DefaultAuthHeader.
	AuthHeader string
	// Client is used for the check call. Defaults to http.DefaultClient;
	// callers set a timeout here.
	Client *http.Client
	Log    *logrus.Logger
}

// Client asks the presenter whether a media id may be served. Any
// failure to obtain a positive answer is reported as a denial, so a
// broken presenter hides media instead of exposing it.
type Client struct {
	checkURL   string
	authHeader string
	client     *http.Client
	log        *logrus.Logger
}

var _ media.Authorizer = (*Client)(nil)

// New validates the base URL and builds a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("presenter requires a base url")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("presenter base url %q invalid", cfg.BaseURL)
	}
	authHeader := cfg.AuthHeader
	if authHeader == "" {
		authHeader = media.DefaultAuthHeader
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		checkURL:   strings.TrimSuffix(cfg.BaseURL, "/") + checkPath,
		authHeader: authHeader,
		client:     client,
		log:        log,
	}, nil
}

type checkRequest struct {
	MediafileID int64 `json:"mediafile_id"`
}

type checkResponse struct {
	OK       bool   `json:"ok"`
	Filename string `json:"filename"`
}

// Check posts the id to the presenter with the forwarded headers
// attached. The headers are expected to be pre-filtered; Check sets its
// own Content-Type after copying them. Transport failures, non-200
// statuses, and undecodable bodies all return a denial with a nil
// error.
func (c *Client) Check(ctx context.Context, id media.ID, headers http.Header) (media.AuthResult, error) {
	payload, err := json.Marshal(checkRequest{MediafileID: int64(id)})
	if err != nil {
		return media.AuthResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.checkURL, bytes.NewReader(payload))
	if err != nil {
		return media.AuthResult{}, err
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warnf("presenter check for %d failed: %v", id, err)
		return media.AuthResult{}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warnf("presenter check for %d returned %s: %s", id, resp.Status, string(body))
		return media.AuthResult{}, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.log.Warnf("presenter check for %d: reading body: %v", id, err)
		return media.AuthResult{}, nil
	}
	var decoded checkResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		if len(body) > 512 {
			body = body[:512]
		}
		c.log.Warnf("presenter check for %d returned undecodable body: %s", id, string(body))
		return media.AuthResult{}, nil
	}
	return media.AuthResult{
		Allowed:    decoded.OK,
		Filename:   decoded.Filename,
		Credential: resp.Header.Get(c.authHeader),
	}, nil
}
