package scores

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrUnavailable reports that the score backend could not be reached or
// answered with a server error. Callers use it to tell an outage apart from
// an empty leaderboard.
var ErrUnavailable = errors.New("score backend unavailable")

const defaultTimeout = 10 * time.Second

// Client talks to the external score backend. The backend stores only opaque
// user id strings and numeric scores; everything display-related stays local.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// BoardScore is one ranked entry as the backend returns it, in rank order.
type BoardScore struct {
	UserID string `json:"userId"`
	Score  int64  `json:"score"`
}

// ScoreCreate is the write payload for a score submission. Confidence,
// HighScore and DaysToKeep are backend policy flags passed through unchanged.
type ScoreCreate struct {
	UserID     string  `json:"userId"`
	Score      int64   `json:"score"`
	Confidence float64 `json:"confidence"`
	HighScore  bool    `json:"highScore"`
	DaysToKeep int     `json:"daysToKeep"`
}

// NewClient creates a score backend client with a default HTTP timeout when
// none is given.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetRange fetches the ranked entries [offset, offset+count) of a board.
func (c *Client) GetRange(ctx context.Context, slug string, offset, count int) ([]BoardScore, error) {
	endpoint := fmt.Sprintf("%s/api/scores/%s?offset=%d&count=%d",
		c.baseURL, url.PathEscape(slug), offset, count)

	var entries []BoardScore
	if err := c.getJSON(ctx, endpoint, &entries); err != nil {
		return nil, fmt.Errorf("score range: %w", err)
	}
	return entries, nil
}

// GetWindowAroundUser fetches a window of entries centered on the user:
// count entries above and below entries below their position. A user without
// a score yields whatever the backend answers for that case, unchanged.
func (c *Client) GetWindowAroundUser(ctx context.Context, slug, userID string, count, below int) ([]BoardScore, error) {
	endpoint := fmt.Sprintf("%s/api/scores/%s/user/%s?count=%d&below=%d",
		c.baseURL, url.PathEscape(slug), url.PathEscape(userID), count, below)

	var entries []BoardScore
	if err := c.getJSON(ctx, endpoint, &entries); err != nil {
		return nil, fmt.Errorf("score window: %w", err)
	}
	return entries, nil
}

// PostScore submits a score for the user on the given board.
func (c *Client) PostScore(ctx context.Context, slug string, score ScoreCreate) error {
	body, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/scores/%s", c.baseURL, url.PathEscape(slug))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: post score: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("post score: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// GetRank returns the user's integer rank on the board.
func (c *Client) GetRank(ctx context.Context, slug, userID string) (int64, error) {
	endpoint := fmt.Sprintf("%s/api/scores/%s/user/%s/rank",
		c.baseURL, url.PathEscape(slug), url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: get rank: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return 0, fmt.Errorf("get rank: %w", err)
	}

	// The rank endpoint answers with a bare JSON number.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return 0, fmt.Errorf("read rank: %w", err)
	}
	rank, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rank %q: %w", bytes.TrimSpace(raw), err)
	}
	return rank, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s: %s", ErrUnavailable, resp.Status, bytes.TrimSpace(body))
	}
	return fmt.Errorf("score backend rejected request: %s: %s", resp.Status, bytes.TrimSpace(body))
}
