package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BowlesCR/cable-modem-monitor/internal/modem"
)

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/MotoConnection.asp", r.URL.Path)
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html>status</html>"))
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(Options{BaseURL: server.URL})
	require.NoError(t, err)

	content, err := f.Fetch(context.Background(), modem.FetchSpec{
		Path: "/MotoConnection.asp",
		Auth: modem.AuthNone,
	})
	require.NoError(t, err)
	assert.Equal(t, "/MotoConnection.asp", content.Path)
	assert.Equal(t, "<html>status</html>", string(content.Body))
}

func TestFetchSendsBasicAuth(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			t.Error("expected basic auth credentials")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "admin", user)
		assert.Equal(t, "hunter2", pass)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(Options{BaseURL: server.URL, Username: "admin", Password: "hunter2"})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), modem.FetchSpec{
		Path:         "/DocsisStatus.asp",
		Auth:         modem.AuthBasic,
		AuthRequired: true,
	})
	require.NoError(t, err)
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(Options{BaseURL: server.URL})
	require.NoError(t, err)

	content, err := f.Fetch(context.Background(), modem.FetchSpec{Path: "/status", Auth: modem.AuthNone})
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(content.Body))
	assert.Equal(t, int32(2), attempts.Load())
}

func TestFetchWrapsTransportErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(Options{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), modem.FetchSpec{Path: "/missing", Auth: modem.AuthNone})
	require.Error(t, err)

	var fetchErr *modem.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "/missing", fetchErr.Path)
}

func TestFetchHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(Options{BaseURL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = f.Fetch(ctx, modem.FetchSpec{Path: "/status", Auth: modem.AuthNone})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHTTPFetcherRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPFetcher(Options{})
	require.Error(t, err)
}

func TestNewHTTPFetcherTrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f, err := NewHTTPFetcher(Options{BaseURL: server.URL + "/"})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), modem.FetchSpec{Path: "/status", Auth: modem.AuthNone})
	require.NoError(t, err)
}

type fetcherFunc func(ctx context.Context, spec modem.FetchSpec) (modem.PageContent, error)

func (fn fetcherFunc) Fetch(ctx context.Context, spec modem.FetchSpec) (modem.PageContent, error) {
	return fn(ctx, spec)
}

func TestFetchAllToleratesPartialFailure(t *testing.T) {
	t.Parallel()

	f := fetcherFunc(func(_ context.Context, spec modem.FetchSpec) (modem.PageContent, error) {
		if spec.AuthRequired {
			return modem.PageContent{}, &modem.FetchError{Path: spec.Path, Err: errors.New("401")}
		}
		return modem.PageContent{Path: spec.Path, Body: []byte("public")}, nil
	})

	pages, err := FetchAll(context.Background(), f, []modem.FetchSpec{
		{Path: "/locked", AuthRequired: true},
		{Path: "/open"},
	})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "public", string(pages["/open"].Body))
}

func TestFetchAllFailsWhenNothingFetchable(t *testing.T) {
	t.Parallel()

	f := fetcherFunc(func(_ context.Context, spec modem.FetchSpec) (modem.PageContent, error) {
		return modem.PageContent{}, &modem.FetchError{Path: spec.Path, Err: errors.New("refused")}
	})

	_, err := FetchAll(context.Background(), f, []modem.FetchSpec{
		{Path: "/a"},
		{Path: "/b"},
	})
	require.Error(t, err)

	var fetchErr *modem.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "/b", fetchErr.Path)
}
