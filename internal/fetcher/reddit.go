// Package fetcher pulls a user's top comments from Reddit's public JSON API
// under a client-side rate limit. Only public listing endpoints are used, so
// no credentials are involved; a descriptive User-Agent is still required.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/tommyshellberg/personna/internal/markdown"
)

const defaultBaseURL = "https://www.reddit.com"

// Config bounds the fetcher.
type Config struct {
	// BaseURL overrides the Reddit endpoint, for tests.
	BaseURL string
	// UserAgent identifies this client; Reddit throttles anonymous defaults.
	UserAgent string
	// MaxCommentsPerUser caps how many comments are requested per user.
	MaxCommentsPerUser int
	// RequestsPerSecond is the client-side rate limit across all requests.
	RequestsPerSecond float64
}

// RedditClient fetches user comment listings.
type RedditClient struct {
	cfg     Config
	limiter *rate.Limiter
	client  *http.Client
}

// NewRedditClient creates a rate-limited client.
func NewRedditClient(cfg Config) *RedditClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxCommentsPerUser <= 0 {
		cfg.MaxCommentsPerUser = 100
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 0.5
	}
	return &RedditClient{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				Body       string  `json:"body"`
				Score      int     `json:"score"`
				Subreddit  string  `json:"subreddit"`
				CreatedUTC float64 `json:"created_utc"`
				Permalink  string  `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// FetchUserComments returns the user's top comments, newest listing first as
// Reddit orders them.
func (c *RedditClient) FetchUserComments(ctx context.Context, username string) ([]markdown.Comment, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/user/%s/comments.json?sort=top&t=all&raw_json=1&limit=%s",
		c.cfg.BaseURL, url.PathEscape(username), strconv.Itoa(c.cfg.MaxCommentsPerUser))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch u/%s: create request: %w", username, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch u/%s: %w", username, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch u/%s: status %d: %s", username, resp.StatusCode, string(raw))
	}

	var listing listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("fetch u/%s: decode listing: %w", username, err)
	}

	comments := make([]markdown.Comment, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		d := child.Data
		if d.Body == "" || d.Permalink == "" {
			continue
		}
		comments = append(comments, markdown.Comment{
			Body:        d.Body,
			Score:       d.Score,
			Subreddit:   d.Subreddit,
			Permalink:   "https://reddit.com" + d.Permalink,
			CreatedDate: time.Unix(int64(d.CreatedUTC), 0).UTC().Format("2006-01-02"),
		})
	}
	return comments, nil
}
