package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reqlens/reqlens/internal/config"
	lenserr "github.com/reqlens/reqlens/internal/errors"
)

// fakeItems builds n remote items named item-1..item-n.
func fakeItems(start, count int) []map[string]any {
	items := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		n := start + i + 1
		items = append(items, map[string]any{
			"id":          n,
			"documentKey": fmt.Sprintf("REQ-%d", n),
			"fields": map[string]any{
				"name":        fmt.Sprintf("item-%d", n),
				"description": fmt.Sprintf("Requirement number %d.", n),
				"priority":    "medium",
			},
		})
	}
	return items
}

func pageHandler(t *testing.T, total int, failures *int32, failOffset int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))

		if startAt == failOffset && atomic.AddInt32(failures, -1) >= 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		count := min(maxResults, total-startAt)
		if count < 0 {
			count = 0
		}
		resp := map[string]any{
			"meta": map[string]any{
				"pageInfo": map[string]any{
					"startIndex":   startAt,
					"resultCount":  count,
					"totalResults": total,
				},
			},
			"data": fakeItems(startAt, count),
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func testSourceConfig(baseURL string) config.SourceConfig {
	return config.SourceConfig{
		BaseURL:        baseURL,
		APIToken:       "token",
		ProjectID:      42,
		PageSize:       5,
		MaxRetries:     2,
		RetryBaseDelay: "1ms",
		RetryMaxDelay:  "5ms",
	}
}

func TestRemoteClient_FetchAll_PagesThroughProject(t *testing.T) {
	var noFailures int32
	srv := httptest.NewServer(pageHandler(t, 12, &noFailures, -1))
	defer srv.Close()

	client, err := NewRemoteClient(testSourceConfig(srv.URL))
	require.NoError(t, err)

	result, err := client.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Requirements, 12)
	assert.Equal(t, 12, result.Total)
	assert.Empty(t, result.FailedPages)
	assert.Equal(t, "REQ-1", result.Requirements[0].ID)
	assert.Equal(t, "Requirement number 1.", result.Requirements[0].Text)
	assert.Equal(t, "42", result.Requirements[0].ProjectID)
}

func TestRemoteClient_FetchAll_TransientFailureRetriesTransparently(t *testing.T) {
	// Second page fails once, then succeeds within the retry budget.
	failures := int32(1)
	srv := httptest.NewServer(pageHandler(t, 12, &failures, 5))
	defer srv.Close()

	client, err := NewRemoteClient(testSourceConfig(srv.URL))
	require.NoError(t, err)

	result, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Requirements, 12)
	assert.Empty(t, result.FailedPages)
}

func TestRemoteClient_FetchAll_TerminalPageFailureContinues(t *testing.T) {
	// Second page fails more times than the retry budget allows.
	failures := int32(10)
	srv := httptest.NewServer(pageHandler(t, 12, &failures, 5))
	defer srv.Close()

	client, err := NewRemoteClient(testSourceConfig(srv.URL))
	require.NoError(t, err)

	result, err := client.FetchAll(context.Background())
	require.NoError(t, err)

	// Pages 1 and 3 survive; the failed page is recorded, not fatal.
	assert.Len(t, result.Requirements, 7)
	assert.Equal(t, []int{5}, result.FailedPages)
}

func TestRemoteClient_FetchAll_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewRemoteClient(testSourceConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.FetchAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, lenserr.ErrCodeSourceUnauthorized, lenserr.GetCode(err))
}

func TestRemoteClient_RequiresBaseURL(t *testing.T) {
	_, err := NewRemoteClient(config.SourceConfig{})
	require.Error(t, err)
}

func TestRemoteClient_FetchAll_SendsBearerToken(t *testing.T) {
	var sawAuth atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer token" {
			sawAuth.Store(true)
		}
		var noFailures int32
		pageHandler(t, 2, &noFailures, -1)(w, r)
	}))
	defer srv.Close()

	client, err := NewRemoteClient(testSourceConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.FetchAll(context.Background())
	require.NoError(t, err)
	assert.True(t, sawAuth.Load())
}
