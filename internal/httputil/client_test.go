package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientProxy(t *testing.T) {
	tests := []struct {
		name    string
		proxy   string
		wantErr bool
	}{
		{"none", "", false},
		{"http", "http://127.0.0.1:3128", false},
		{"socks5", "socks5://127.0.0.1:9050", false},
		{"unsupported", "gopher://127.0.0.1:70", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(Options{Proxy: tt.proxy, Timeout: time.Second})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, time.Second, c.Timeout)
		})
	}
}

func TestNewRequestSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := NewClient(Options{})
	require.NoError(t, err)

	req, err := NewRequest(context.Background(), http.MethodGet, srv.URL, nil, "")
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)

	body, err := ReadBody(resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, DefaultUserAgent, got)
}

func TestReadBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", maxBody+10)))
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)

	_, err = ReadBody(resp)
	assert.Error(t, err)
}
