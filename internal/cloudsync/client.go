// Package cloudsync keeps the legacy JSON blob document in step with the database.
//
// The blob holds one document with every user and item. It can be imported
// once on startup and is re-exported on a schedule for older clients that
// still read it. A local cache file mirrors the last known document so a
// temporary outage of the blob host does not lose data.
package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/honesta/lostfound-api/internal/config"
	"go.uber.org/zap"
)

// ErrMirrorDisabled is returned when the mirror has no URL configured
var ErrMirrorDisabled = errors.New("mirror is not configured")

// Snapshot is the legacy document: every user and every item
type Snapshot struct {
	Revision   string       `json:"revision,omitempty"`
	ExportedAt int64        `json:"exportedAt,omitempty"`
	Users      []LegacyUser `json:"users"`
	Items      []LegacyItem `json:"items"`
}

// LegacyUser is a user as stored in the blob. Password is read on import only.
type LegacyUser struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
	Password    string `json:"password,omitempty"`
	Role        string `json:"role"`
}

// LegacyItem is a found item as stored in the blob
type LegacyItem struct {
	ID                    string          `json:"id"`
	Title                 string          `json:"title"`
	ImageURL              string          `json:"imageUrl"`
	OriginalImageURL      string          `json:"originalImageUrl"`
	FounderID             string          `json:"founderId"`
	FounderName           string          `json:"founderName"`
	FounderPhone          string          `json:"founderPhone"`
	Timestamp             int64           `json:"timestamp"`
	Status                string          `json:"status"`
	VerificationQuestions []string        `json:"verificationQuestions"`
	VerificationAnswers   []string        `json:"verificationAnswers"`
	Messages              []LegacyMessage `json:"messages"`
}

// LegacyMessage is a chat message embedded in a legacy item
type LegacyMessage struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// Client reads and writes the blob document
type Client struct {
	url        string
	cachePath  string
	httpClient *http.Client
	attempts   uint
	delay      time.Duration
	logger     *zap.Logger
}

// ClientOption customises a Client
type ClientOption func(*Client)

// WithRetry sets the number of attempts and the base delay between them
func WithRetry(attempts uint, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// NewClient creates a blob client from the mirror configuration
func NewClient(cfg *config.MirrorConfig, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrMirrorDisabled
	}

	timeout := cfg.TimeoutDuration()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		url:        cfg.URL,
		cachePath:  cfg.CachePath,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   3,
		delay:      500 * time.Millisecond,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch downloads the document. When the blob host cannot be reached the
// cached copy is returned, and without a cache an empty snapshot.
func (c *Client) Fetch(ctx context.Context) (Snapshot, error) {
	snap, err := retry.DoWithData(func() (Snapshot, error) {
		return c.get(ctx)
	},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Debug("mirror fetch failed, retrying", zap.Uint("attempt", attempt+1), zap.Error(err))
		}),
	)
	if err == nil {
		c.writeCache(snap)
		return snap, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Snapshot{}, ctxErr
	}

	c.logger.Warn("mirror unreachable, using local cache", zap.String("url", c.url), zap.Error(err))
	cached, cacheErr := c.readCache()
	if cacheErr != nil {
		if !errors.Is(cacheErr, os.ErrNotExist) {
			c.logger.Warn("mirror cache unreadable", zap.String("path", c.cachePath), zap.Error(cacheErr))
		}
		return emptySnapshot(), nil
	}
	return cached, nil
}

// Push writes the cache file, then uploads the document
func (c *Client) Push(ctx context.Context, snap Snapshot) error {
	c.writeCache(snap)

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	err = retry.Do(func() error {
		return c.put(ctx, body)
	},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("failed to push snapshot after %d attempts: %w", c.attempts, err)
	}

	c.logger.Info("mirror snapshot pushed",
		zap.String("revision", snap.Revision),
		zap.Int("users", len(snap.Users)),
		zap.Int("items", len(snap.Items)),
	)
	return nil
}

func (c *Client) get(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Snapshot{}, retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return Snapshot{}, retry.Unrecoverable(fmt.Errorf("failed to decode snapshot: %w", err))
	}
	if snap.Users == nil {
		snap.Users = []LegacyUser{}
	}
	if snap.Items == nil {
		snap.Items = []LegacyItem{}
	}
	return snap, nil
}

func (c *Client) put(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return statusError(resp)
}

// statusError maps a non-2xx response to an error. Client errors are not retried.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err := fmt.Errorf("mirror returned %s", resp.Status)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Unrecoverable(err)
	}
	return err
}

func (c *Client) writeCache(snap Snapshot) {
	if c.cachePath == "" {
		return
	}
	if err := writeFileAtomic(c.cachePath, snap); err != nil {
		c.logger.Warn("failed to write mirror cache", zap.String("path", c.cachePath), zap.Error(err))
	}
}

func (c *Client) readCache() (Snapshot, error) {
	if c.cachePath == "" {
		return Snapshot{}, os.ErrNotExist
	}
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return Snapshot{}, err
	}
	snap := emptySnapshot()
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode cache: %w", err)
	}
	return snap, nil
}

func writeFileAtomic(path string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".mirror-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func emptySnapshot() Snapshot {
	return Snapshot{Users: []LegacyUser{}, Items: []LegacyItem{}}
}
