// Package coreapi is the ML service's client for the core REST API.
package coreapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/urfu-lab/studyhub/core/features"
)

const (
	requestTimeout = 10 * time.Second

	loginPath      = "/api/core/auth/login/"
	refreshPath    = "/api/core/auth/refresh/"
	mySchedulePath = "/api/schedule/my-schedule/"
	myGradesPath   = "/api/grades/my-grades/"
)

var ErrUnauthorized = errors.New("invalid credentials")

// StatusError is returned when the core API answers with a non-2xx status.
type StatusError struct {
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("core api %s returned %d", e.Path, e.Status)
}

type Client struct {
	baseURL string
	http    *http.Client
	cache   *gocache.Cache
	ttl     time.Duration
}

var _ features.Source = (*Client)(nil)

// NewClient returns a client for the core API at baseURL. Schedule and grades are cached per token for cacheTTL;
// a zero cacheTTL disables caching.
func NewClient(baseURL string, cacheTTL time.Duration) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		ttl:     cacheTTL,
	}
	if cacheTTL > 0 {
		c.cache = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return c
}

func (c *Client) MySchedule(ctx context.Context, token string) ([]features.ScheduleItem, error) {
	var items []features.ScheduleItem
	if err := c.getCached(ctx, mySchedulePath, token, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) MyGrades(ctx context.Context, token string) ([]features.GradeBlock, error) {
	var blocks []features.GradeBlock
	if err := c.getCached(ctx, myGradesPath, token, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// Login exchanges credentials for a token pair and returns the core API response untouched.
func (c *Client) Login(ctx context.Context, username, password string) (json.RawMessage, error) {
	return c.postAuth(ctx, loginPath, map[string]string{"username": username, "password": password})
}

// Refresh rotates a refresh token and returns the core API response untouched.
func (c *Client) Refresh(ctx context.Context, refresh string) (json.RawMessage, error) {
	return c.postAuth(ctx, refreshPath, map[string]string{"refresh": refresh})
}

func (c *Client) postAuth(ctx context.Context, path string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	raw, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, ErrUnauthorized
	}
	if !json.Valid(raw) {
		return nil, errors.Errorf("core api %s returned invalid json", path)
	}
	return raw, nil
}

func (c *Client) getCached(ctx context.Context, path, token string, dest interface{}) error {
	key := path + ":" + tokenHash(token)
	if c.cache != nil {
		if raw, ok := c.cache.Get(key); ok {
			return json.Unmarshal(raw.([]byte), dest)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	raw, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &StatusError{Path: path, Status: status}
	}
	if err = json.Unmarshal(raw, dest); err != nil {
		return errors.Wrapf(err, "decoding core api %s", path)
	}
	if c.cache != nil {
		c.cache.Set(key, raw, c.ttl)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "calling core api %s", req.URL.Path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading core api %s", req.URL.Path)
	}
	return raw, resp.StatusCode, nil
}

// tokenHash keeps raw tokens out of cache keys.
func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
