package webhook

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverAccepted(t *testing.T) {
	var calls atomic.Int32
	var gotBody []byte
	var gotHeader http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	result, err := Deliver(Options{URL: server.URL, MaxRedirects: 5}, []byte(`{"version":"1"}`))
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Empty(t, result.Messages)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, `{"version":"1"}`, string(gotBody))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	assert.Equal(t, userAgent, gotHeader.Get("User-Agent"))
	assert.NotEmpty(t, gotHeader.Get("X-Refguard-Delivery"))
}

func TestDeliverRejectedWithMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `["bad format"]`)
	}))
	defer server.Close()

	result, err := Deliver(Options{URL: server.URL, MaxRedirects: 5}, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, []string{"bad format"}, result.Messages)
}

func TestDeliverRejectedWithWrappedMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"messages":["bad format"]}`)
	}))
	defer server.Close()

	result, err := Deliver(Options{URL: server.URL, MaxRedirects: 5}, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, []string{"bad format"}, result.Messages)
}

func TestDeliverAcceptedWithMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		io.WriteString(w, `["looks good","thanks"]`)
	}))
	defer server.Close()

	result, err := Deliver(Options{URL: server.URL, MaxRedirects: 5}, []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, []string{"looks good", "thanks"}, result.Messages)
}

func TestDeliverIgnoresNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, "nope")
	}))
	defer server.Close()

	result, err := Deliver(Options{URL: server.URL, MaxRedirects: 5}, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Empty(t, result.Messages)
}

func TestDeliverIgnoresMalformedJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"messages": not json`)
	}))
	defer server.Close()

	result, err := Deliver(Options{URL: server.URL, MaxRedirects: 5}, []byte(`{}`))
	require.NoError(t, err)

	// The status still decides; only message extraction is skipped.
	assert.True(t, result.Accepted)
	assert.Empty(t, result.Messages)
}

func TestDeliverConnectionRefused(t *testing.T) {
	// Grab a port nothing listens on.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := Deliver(Options{URL: url, ConnectTimeout: time.Second, MaxRedirects: 5}, []byte(`{}`))
	require.Error(t, err)
}

func TestDeliverRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	_, err := Deliver(Options{URL: server.URL, RequestTimeout: 50 * time.Millisecond, MaxRedirects: 5}, []byte(`{}`))
	require.Error(t, err)
}

func TestDeliverRedirectCap(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL, http.StatusTemporaryRedirect)
	}))
	defer server.Close()

	_, err := Deliver(Options{URL: server.URL, MaxRedirects: 3}, []byte(`{}`))
	require.Error(t, err)
}
