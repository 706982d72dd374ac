package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clipshelf/server/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:5000", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.2 "}, "10.0.0.1:5000", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.10:41234", "192.0.2.10"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestAccessMeta(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/s/ab12cd", nil)
	req.RemoteAddr = "192.0.2.10:1234"
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Referer", "https://example.com/")

	assert.Equal(t, service.AccessMeta{
		IP:        "192.0.2.10",
		UserAgent: "curl/8.0",
		Referer:   "https://example.com/",
	}, accessMeta(req))
}

func TestPagination(t *testing.T) {
	page, size, err := pagination(httptest.NewRequest(http.MethodGet, "/api/clips", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, service.DefaultPageSize, size)

	page, size, err = pagination(httptest.NewRequest(http.MethodGet, "/api/clips?page=3&page_size=5", nil))
	require.NoError(t, err)
	assert.Equal(t, 3, page)
	assert.Equal(t, 5, size)

	_, _, err = pagination(httptest.NewRequest(http.MethodGet, "/api/clips?page=two", nil))
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestPathID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("id", "1234")
	id, err := pathID(req)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), id)

	for _, v := range []string{"", "abc", "-1", "0"} {
		req.SetPathValue("id", v)
		_, err = pathID(req)
		assert.ErrorIs(t, err, service.ErrNotFound, v)
	}
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"go"}`))
	require.NoError(t, decodeJSON(httptest.NewRecorder(), req, &body))
	assert.Equal(t, "go", body.Name)

	for _, raw := range []string{"", "{", `{"unknown":1}`, `[]`} {
		req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		err := decodeJSON(httptest.NewRecorder(), req, &body)
		assert.ErrorIs(t, err, service.ErrValidation, raw)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(fakePinger{}).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","data":{"database":"ok"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(fakePinger{err: errors.New("connection refused")}).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database unreachable")
}
