package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/reqlens/reqlens/internal/config"
	lenserr "github.com/reqlens/reqlens/internal/errors"
	"github.com/reqlens/reqlens/internal/store"
)

const (
	defaultPageSize       = 50
	defaultRequestTimeout = 30 * time.Second
)

// RemoteClient fetches requirement items from a Jama-compatible REST API
// using startAt/maxResults pagination. Transient page failures retry with
// exponential backoff; a page that exhausts its retries is recorded and
// skipped so one bad page never discards the rest of the project.
type RemoteClient struct {
	baseURL   string
	token     string
	projectID int
	pageSize  int
	retry     lenserr.RetryConfig
	client    *http.Client
	logger    *slog.Logger
}

// FetchResult is the outcome of a full project fetch.
type FetchResult struct {
	Requirements []*store.Requirement
	FailedPages  []int // startAt offsets of pages that exhausted retries
	Total        int   // totalResults reported by the server
}

// NewRemoteClient builds a client from source configuration.
func NewRemoteClient(cfg config.SourceConfig) (*RemoteClient, error) {
	if cfg.BaseURL == "" {
		return nil, lenserr.ConfigError("source base_url is required", nil).
			WithSuggestion("set source.base_url in .reqlens.yaml or REQLENS_SOURCE_BASE_URL")
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	retry := lenserr.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	if d, err := time.ParseDuration(cfg.RetryBaseDelay); err == nil && d > 0 {
		retry.InitialDelay = d
	}
	if d, err := time.ParseDuration(cfg.RetryMaxDelay); err == nil && d > 0 {
		retry.MaxDelay = d
	}

	return &RemoteClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.APIToken,
		projectID: cfg.ProjectID,
		pageSize:  pageSize,
		retry:     retry,
		client:    &http.Client{Timeout: defaultRequestTimeout},
		logger:    slog.Default().With("component", "remote-source"),
	}, nil
}

// itemsPage mirrors the Jama REST items response.
type itemsPage struct {
	Meta struct {
		PageInfo struct {
			StartIndex   int `json:"startIndex"`
			ResultCount  int `json:"resultCount"`
			TotalResults int `json:"totalResults"`
		} `json:"pageInfo"`
	} `json:"meta"`
	Data []remoteItem `json:"data"`
}

type remoteItem struct {
	ID          int            `json:"id"`
	DocumentKey string         `json:"documentKey"`
	Fields      map[string]any `json:"fields"`
}

// FetchAll pages through the project's items. Context cancellation stops
// immediately; a page failing all retries is logged into FailedPages and
// fetching continues at the next offset.
func (c *RemoteClient) FetchAll(ctx context.Context) (*FetchResult, error) {
	result := &FetchResult{}

	for startAt := 0; ; startAt += c.pageSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page, err := lenserr.RetryWithResult(ctx, c.retry, func() (*itemsPage, error) {
			return c.fetchPage(ctx, startAt)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if lenserr.IsFatal(err) {
				return nil, err
			}
			// Before the first successful page the total is unknown,
			// so there is nothing to continue into.
			if result.Total == 0 {
				return nil, lenserr.New(lenserr.ErrCodeSourceUnavailable,
					"could not fetch first page", err)
			}
			c.logger.Error("page failed after retries, continuing",
				"start_at", startAt, "err", err)
			result.FailedPages = append(result.FailedPages, startAt)
			if startAt+c.pageSize >= result.Total {
				break
			}
			continue
		}

		result.Total = page.Meta.PageInfo.TotalResults
		for _, item := range page.Data {
			result.Requirements = append(result.Requirements, c.convertItem(item))
		}

		if page.Meta.PageInfo.ResultCount < c.pageSize ||
			startAt+page.Meta.PageInfo.ResultCount >= result.Total {
			break
		}
	}

	c.logger.Info("remote fetch complete",
		"fetched", len(result.Requirements),
		"total", result.Total,
		"failed_pages", len(result.FailedPages))
	return result, nil
}

// fetchPage requests one page of items.
func (c *RemoteClient) fetchPage(ctx context.Context, startAt int) (*itemsPage, error) {
	q := url.Values{}
	q.Set("startAt", strconv.Itoa(startAt))
	q.Set("maxResults", strconv.Itoa(c.pageSize))
	if c.projectID > 0 {
		q.Set("project", strconv.Itoa(c.projectID))
	}

	endpoint := c.baseURL + "/rest/v1/items?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, lenserr.InternalError("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, lenserr.FetchError(fmt.Sprintf("page at offset %d unreachable", startAt), err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, lenserr.New(lenserr.ErrCodeSourceUnauthorized,
			"source rejected credentials", nil).
			WithSuggestion("check REQLENS_API_TOKEN")
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, lenserr.FetchError(
			fmt.Sprintf("page at offset %d returned status %d: %s", startAt, resp.StatusCode, body), nil)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, lenserr.New(lenserr.ErrCodeSourceUnavailable,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, body), nil)
	}

	var page itemsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, lenserr.FetchError(fmt.Sprintf("cannot decode page at offset %d", startAt), err)
	}
	return &page, nil
}

// convertItem maps a remote item to a Requirement. The documentKey is the
// stable id; fields flatten the same way file records do.
func (c *RemoteClient) convertItem(item remoteItem) *store.Requirement {
	fields := make(map[string]string, len(item.Fields))
	for k, v := range item.Fields {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case float64:
			fields[k] = formatNumber(val)
		case bool:
			fields[k] = fmt.Sprintf("%t", val)
		}
	}

	id := item.DocumentKey
	if id == "" {
		id = fmt.Sprintf("ITEM-%d", item.ID)
	}

	req := &store.Requirement{
		ID:         id,
		Name:       pick(fields, "name", "title"),
		Text:       strings.TrimSpace(pick(fields, "description", "text")),
		SourceType: "remote",
		Priority:   pick(fields, "priority"),
		Status:     pick(fields, "status"),
		IngestedAt: time.Now().UTC(),
	}
	if c.projectID > 0 {
		req.ProjectID = strconv.Itoa(c.projectID)
	}

	claimed := map[string]bool{"name": true, "title": true, "description": true, "text": true,
		"priority": true, "status": true}
	for k, v := range fields {
		if claimed[strings.ToLower(k)] || strings.TrimSpace(v) == "" {
			continue
		}
		if req.CustomFields == nil {
			req.CustomFields = map[string]string{}
		}
		req.CustomFields[k] = v
	}
	return req
}
