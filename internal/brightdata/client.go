// Package brightdata is the gateway to the Bright Data scraping provider. It
// covers both request shapes the provider exposes: the synchronous request
// relay used for engine searches, and asynchronous dataset jobs (trigger,
// poll, snapshot download) used for discussion discovery and comment
// retrieval.
//
// Transport, status and parsing failures never cross this boundary as
// anything other than an error return; callers treat an error as "result
// unavailable".
package brightdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/prospect-labs/prospector/config"
	"github.com/prospect-labs/prospector/internal/telemetry"
)

// Client issues authenticated requests to the provider.
type Client struct {
	http      *http.Client
	apiKey    string
	baseURL   string
	zone      string
	datasetID string

	pollMaxAttempts int
	pollDelay       time.Duration

	logger  *log.Logger
	metrics *telemetry.Telemetry
}

// New builds a client from configuration.
func New(cfg config.BrightDataConfig, logger *log.Logger, metrics *telemetry.Telemetry) *Client {
	return &Client{
		http:            &http.Client{Timeout: cfg.RequestTimeout},
		apiKey:          cfg.APIKey,
		baseURL:         cfg.BaseURL,
		zone:            cfg.Zone,
		datasetID:       cfg.DatasetID,
		pollMaxAttempts: cfg.PollMaxAttempts,
		pollDelay:       cfg.PollDelay,
		logger:          logger,
		metrics:         metrics,
	}
}

func engineSearchURL(engine Engine, query string) (string, error) {
	var base string
	switch engine {
	case EngineGoogle:
		base = "https://www.google.com/search"
	case EngineBing:
		base = "https://www.bing.com/search"
	default:
		return "", fmt.Errorf("unknown search engine %q", engine)
	}
	return base + "?q=" + url.QueryEscape(query) + "&brd_json=1", nil
}

// Search runs one synchronous engine search through the request relay and
// normalizes the response. Absent fields default to empty containers, never
// to an error.
func (c *Client) Search(ctx context.Context, query string, engine Engine) (*SearchBundle, error) {
	target, err := engineSearchURL(engine, query)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"zone":   c.zone,
		"url":    target,
		"format": "raw",
	}
	var bundle SearchBundle
	if err := c.postJSON(ctx, c.baseURL+"/request", payload, &bundle); err != nil {
		c.metrics.RecordSearch(string(engine), false)
		return nil, fmt.Errorf("%s search: %w", engine, err)
	}
	if bundle.Knowledge == nil {
		bundle.Knowledge = map[string]any{}
	}
	if bundle.Organic == nil {
		bundle.Organic = []Snippet{}
	}
	c.metrics.RecordSearch(string(engine), true)
	return &bundle, nil
}

// TriggerJob submits an asynchronous dataset job and returns its snapshot id.
func (c *Client) TriggerJob(ctx context.Context, params url.Values, payload any) (string, error) {
	var out struct {
		SnapshotID string `json:"snapshot_id"`
	}
	if err := c.postJSON(ctx, c.baseURL+"/datasets/v3/trigger?"+params.Encode(), payload, &out); err != nil {
		return "", fmt.Errorf("trigger job: %w", err)
	}
	if out.SnapshotID == "" {
		return "", fmt.Errorf("trigger job: provider response has no snapshot_id")
	}
	return out.SnapshotID, nil
}

// WaitReady polls the job's progress until it reaches a terminal state or the
// attempt budget is exhausted. "ready" returns true immediately and "failed"
// returns false immediately; every other observation (transport error,
// non-2xx status, malformed body, unrecognized status string) consumes one
// attempt after sleeping delay. It never returns an error.
func (c *Client) WaitReady(ctx context.Context, snapshotID string, maxAttempts int, delay time.Duration) bool {
	progressURL := c.baseURL + "/datasets/v3/progress/" + snapshotID

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.metrics.RecordPollAttempt()
		var progress struct {
			Status string `json:"status"`
		}
		err := c.getJSON(ctx, progressURL, &progress)
		switch {
		case err != nil:
			c.logger.Printf("snapshot %s: progress check %d/%d failed: %v", snapshotID, attempt, maxAttempts, err)
		case progress.Status == "ready":
			return true
		case progress.Status == "failed":
			c.logger.Printf("snapshot %s: provider reported failure", snapshotID)
			return false
		case progress.Status == "running":
			c.logger.Printf("snapshot %s: still running (attempt %d/%d)", snapshotID, attempt, maxAttempts)
		default:
			c.logger.Printf("snapshot %s: unknown status %q (attempt %d/%d)", snapshotID, progress.Status, attempt, maxAttempts)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.logger.Printf("snapshot %s: canceled while polling: %v", snapshotID, ctx.Err())
			return false
		}
	}

	c.logger.Printf("snapshot %s: timed out after %d attempts", snapshotID, maxAttempts)
	return false
}

// DownloadSnapshot fetches the completed job's output. Single request, no
// retry; readiness retries belong to WaitReady.
func (c *Client) DownloadSnapshot(ctx context.Context, snapshotID, format string) ([]json.RawMessage, error) {
	if format == "" {
		format = "json"
	}
	var items []json.RawMessage
	downloadURL := c.baseURL + "/datasets/v3/snapshot/" + snapshotID + "?format=" + url.QueryEscape(format)
	if err := c.getJSON(ctx, downloadURL, &items); err != nil {
		return nil, fmt.Errorf("download snapshot %s: %w", snapshotID, err)
	}
	return items, nil
}

// runJob composes trigger, poll and download. It is the only path by which
// dataset results reach the system.
func (c *Client) runJob(ctx context.Context, params url.Values, payload any) ([]json.RawMessage, error) {
	snapshotID, err := c.TriggerJob(ctx, params, payload)
	if err != nil {
		return nil, err
	}
	if !c.WaitReady(ctx, snapshotID, c.pollMaxAttempts, c.pollDelay) {
		return nil, fmt.Errorf("snapshot %s never became ready", snapshotID)
	}
	return c.DownloadSnapshot(ctx, snapshotID, "json")
}

// DiscoverPosts runs a keyword discovery job against the discussion dataset
// and projects each raw post down to title and url. An unavailable job
// propagates as an error, distinct from a successful job that found nothing.
func (c *Client) DiscoverPosts(ctx context.Context, keyword, dateRange, sortBy string, limit int) (*DiscoveryBundle, error) {
	params := url.Values{}
	params.Set("dataset_id", c.datasetID)
	params.Set("include_errors", "true")
	params.Set("type", "discover_new")
	params.Set("discover_by", "keyword")

	payload := []map[string]any{{
		"keyword":      keyword,
		"date":         dateRange,
		"sort_by":      sortBy,
		"num_of_posts": limit,
	}}

	raw, err := c.runJob(ctx, params, payload)
	if err != nil {
		return nil, fmt.Errorf("discover posts: %w", err)
	}

	bundle := &DiscoveryBundle{Posts: []Post{}}
	for _, item := range raw {
		var post Post
		if err := json.Unmarshal(item, &post); err != nil {
			c.logger.Printf("discover posts: skipping malformed post: %v", err)
			continue
		}
		bundle.Posts = append(bundle.Posts, post)
	}
	bundle.TotalFound = len(bundle.Posts)
	return bundle, nil
}

// RetrieveComments runs a comment-retrieval job for the given thread URLs.
// An empty url list short-circuits to (nil, nil) without contacting the
// provider.
func (c *Client) RetrieveComments(ctx context.Context, urls []string, daysBack int, loadAllReplies bool, commentLimit int) (*CommentBundle, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("dataset_id", c.datasetID)
	params.Set("include_errors", "true")

	payload := make([]map[string]any, 0, len(urls))
	for _, u := range urls {
		entry := map[string]any{
			"url":              u,
			"days_back":        daysBack,
			"load_all_replies": loadAllReplies,
		}
		if commentLimit > 0 {
			entry["comment_limit"] = commentLimit
		}
		payload = append(payload, entry)
	}

	raw, err := c.runJob(ctx, params, payload)
	if err != nil {
		return nil, fmt.Errorf("retrieve comments: %w", err)
	}

	bundle := &CommentBundle{Comments: []Comment{}}
	for _, item := range raw {
		var comment Comment
		if err := json.Unmarshal(item, &comment); err != nil {
			c.logger.Printf("retrieve comments: skipping malformed comment: %v", err)
			continue
		}
		bundle.Comments = append(bundle.Comments, comment)
	}
	bundle.TotalRetrieved = len(bundle.Comments)
	return bundle, nil
}

func (c *Client) postJSON(ctx context.Context, target string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider status %s: %s", resp.Status, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
