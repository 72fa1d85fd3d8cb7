package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testFetcher() *Fetcher {
	f := NewFetcher(zap.NewNop())
	f.MinDelay = time.Millisecond
	return f
}

func TestGreenhouseFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stripe/jobs", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("content"))
		w.Write([]byte(`{"jobs":[{
			"id": 4285367,
			"title": "Software Engineering Intern (Summer 2026)",
			"absolute_url": "https://boards.greenhouse.io/stripe/jobs/4285367",
			"updated_at": "2026-08-01T10:00:00-04:00",
			"content": "<p>Build payments infrastructure.</p>",
			"location": {"name": "San Francisco, CA"},
			"departments": [{"name": "Engineering"}]
		}]}`))
	}))
	defer srv.Close()

	gh := NewGreenhouse(testFetcher())
	gh.APIURL = srv.URL

	jobs, err := gh.Fetch(context.Background(), Board{Name: "Stripe", Platform: PlatformGreenhouse, Slug: "stripe"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	j := jobs[0]
	require.Equal(t, PlatformGreenhouse, j.Platform)
	require.Equal(t, "Stripe", j.Company)
	require.Equal(t, "4285367", j.SourceJobID)
	require.Equal(t, "Software Engineering Intern (Summer 2026)", j.Title)
	require.Equal(t, "San Francisco, CA", j.Location)
	require.Equal(t, "https://boards.greenhouse.io/stripe/jobs/4285367", j.ApplyURL)
	require.Contains(t, j.DescriptionHTML, "payments infrastructure")
}

func TestLeverFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/spotify", r.URL.Path)
		w.Write([]byte(`[{
			"id": "a1b2c3",
			"text": "Backend Engineer Intern",
			"hostedUrl": "https://jobs.lever.co/spotify/a1b2c3",
			"applyUrl": "https://jobs.lever.co/spotify/a1b2c3/apply",
			"createdAt": 1754006400000,
			"categories": {"location": "Remote - US", "department": "Platform"},
			"description": "<div>Work on streaming.</div>",
			"additional": "<div>Paid internship.</div>"
		}]`))
	}))
	defer srv.Close()

	lv := NewLever(testFetcher())
	lv.APIURL = srv.URL

	jobs, err := lv.Fetch(context.Background(), Board{Name: "Spotify", Platform: PlatformLever, Slug: "spotify"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	j := jobs[0]
	require.Equal(t, "a1b2c3", j.SourceJobID)
	require.Equal(t, "https://jobs.lever.co/spotify/a1b2c3/apply", j.ApplyURL)
	require.Equal(t, "Remote - US", j.Location)
	require.Contains(t, j.DescriptionHTML, "Paid internship")
	require.NotEmpty(t, j.DatePosted)
}

func TestFetcherRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	var out map[string]bool
	err := testFetcher().GetJSON(context.Background(), srv.URL, &out)
	require.NoError(t, err)
	require.True(t, out["ok"])
	require.EqualValues(t, 3, calls.Load())
}

func TestFetcherDoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := testFetcher().GetJSON(context.Background(), srv.URL, &map[string]any{})
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.False(t, statusErr.Retryable())
	require.EqualValues(t, 1, calls.Load())
}

func TestFetcherGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := testFetcher()
	err := f.GetJSON(context.Background(), srv.URL, &map[string]any{})
	require.Error(t, err)
	require.EqualValues(t, f.MaxAttempts, calls.Load())
}
