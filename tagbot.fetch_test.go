package tagbot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawPasteURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://hasteb.in/abc123", want: "https://hasteb.in/raw/abc123"},
		{in: "https://hasteb.in/raw/abc123", want: "https://hasteb.in/raw/abc123"},
		{in: "https://hasteb.in/", want: "https://hasteb.in/"},
		{in: "https://paste.example/abc", want: "https://paste.example/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, RawPasteURL(tt.in))
		})
	}
}

func TestIsRemoteContent(t *testing.T) {
	assert.True(t, IsRemoteContent("https://paste.example/x"))
	assert.True(t, IsRemoteContent("http://paste.example/x"))
	assert.False(t, IsRemoteContent("see https://paste.example/x"))
	assert.False(t, IsRemoteContent(`{"content": "x"}`))
}

func TestHTTPFetcher_Fetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content": "remote {user}"}`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	})
	mux.HandleFunc("/exact", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 32)))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewHTTPFetcher(200*time.Millisecond, 32).AllowPrivateNetworks()
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		body, err := fetcher.Fetch(ctx, server.URL+"/ok")
		require.NoError(t, err)
		assert.Equal(t, `{"content": "remote {user}"}`, body)
	})

	t.Run("at size limit", func(t *testing.T) {
		body, err := fetcher.Fetch(ctx, server.URL+"/exact")
		require.NoError(t, err)
		assert.Len(t, body, 32)
	})

	t.Run("non-2xx", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFetchFailure))
		assert.Contains(t, metadataOf(err, MetaKeyReason), "404")
	})

	t.Run("too large", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/big")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFetchFailure))
		assert.Equal(t, ErrMsgFetchTooLarge, metadataOf(err, MetaKeyReason))
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/slow")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFetchTimeout))
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, "http://127.0.0.1:1/nothing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFetchFailure) || errors.Is(err, ErrFetchTimeout))
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, "http://bad host/")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFetchFailure))
	})
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(0, 0)
	assert.Equal(t, DefaultFetchTimeout, f.timeout)
	assert.Equal(t, int64(DefaultFetchMaxSize), f.maxSize)
}

func TestHTTPFetcher_RefusesNonPublicAddresses(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("internal"))
	}))
	defer server.Close()

	ctx := context.Background()

	t.Run("loopback refused by default", func(t *testing.T) {
		_, err := NewHTTPFetcher(time.Second, 0).Fetch(ctx, server.URL+"/admin")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFetchFailure))
		assert.Equal(t, ErrMsgFetchBlockedAddress, metadataOf(err, MetaKeyReason))
		assert.Zero(t, hits.Load())
	})

	t.Run("allowed when configured", func(t *testing.T) {
		settings := FetchSettings{Timeout: time.Second, AllowPrivate: true}
		body, err := settings.NewFetcher().Fetch(ctx, server.URL+"/admin")
		require.NoError(t, err)
		assert.Equal(t, "internal", body)
	})
}

func TestIsBlockedFetchAddr(t *testing.T) {
	tests := []struct {
		addr    string
		blocked bool
	}{
		{addr: "127.0.0.1", blocked: true},
		{addr: "::1", blocked: true},
		{addr: "10.1.2.3", blocked: true},
		{addr: "172.16.0.1", blocked: true},
		{addr: "192.168.1.1", blocked: true},
		{addr: "169.254.169.254", blocked: true},
		{addr: "fe80::1", blocked: true},
		{addr: "fd00::1", blocked: true},
		{addr: "0.0.0.0", blocked: true},
		{addr: "224.0.0.1", blocked: true},
		{addr: "::ffff:127.0.0.1", blocked: true},
		{addr: "93.184.216.34", blocked: false},
		{addr: "2606:4700::1111", blocked: false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.blocked, IsBlockedFetchAddr(netip.MustParseAddr(tt.addr)))
		})
	}
}
