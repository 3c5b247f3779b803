package rtms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/chat-widget/internal/config"
	"github.com/spec-kit/chat-widget/internal/domain"
)

func TestDeriveEndpoints(t *testing.T) {
	tests := []struct {
		name         string
		siteURL      string
		settings     Settings
		wantAPI      string
		wantRealtime string
		wantErr      bool
	}{
		{
			name:         "bare host",
			siteURL:      "chat.example.com",
			wantAPI:      "https://chat.example.com/rtmsAPI/api/v3",
			wantRealtime: "chat.example.com",
		},
		{
			name:         "with scheme",
			siteURL:      "https://chat.example.com",
			wantAPI:      "https://chat.example.com/rtmsAPI/api/v3",
			wantRealtime: "chat.example.com",
		},
		{
			name:         "explicit overrides win",
			siteURL:      "chat.example.com",
			settings:     Settings{APIBaseURL: "https://api.other.com/v3/", RealtimeHost: "push.other.com"},
			wantAPI:      "https://api.other.com/v3",
			wantRealtime: "push.other.com",
		},
		{
			name:    "empty without overrides",
			siteURL: "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.settings
			err := s.DeriveEndpoints(tt.siteURL)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAPI, s.APIBaseURL)
			assert.Equal(t, tt.wantRealtime, s.RealtimeHost)
		})
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(
		Settings{AppID: "app1", ClientSecret: "sekrit", APIBaseURL: baseURL, RealtimeHost: "push.example.com"},
		domain.Identity{UserID: "u1", DeviceID: "d1"},
		config.VendorConfig{SDKVersion: "2.0.0", HTTPTimeoutSeconds: 5, HistoryLimit: 100},
		zap.NewNop(),
	)
}

func TestClientRegister(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/app1/register", r.URL.Path)
		assert.Equal(t, "sekrit", r.Header.Get("secretkey"))
		assert.Equal(t, "2.0.0", r.Header.Get("sdkversion"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["userId"])
		assert.Equal(t, "d1", body["deviceId"])

		json.NewEncoder(w).Encode(map[string]string{"accessToken": "tok-123"})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	token, err := c.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)

	creds := c.Credentials()
	assert.Equal(t, "push.example.com", creds.Host)
	assert.Equal(t, "app1/u1/d1/at_tok-123", creds.ClientID)
	assert.Equal(t, "app1/u1", creds.Username)
	assert.Equal(t, "app1/u1", creds.Topic)
	assert.Equal(t, "sekrit", creds.Password)
}

func TestClientRegisterMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Register(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestClientRegistersLazilyBeforeFirstCall(t *testing.T) {
	var registered atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/register") {
			registered.Store(true)
			json.NewEncoder(w).Encode(map[string]string{"accessToken": "tok-1"})
			return
		}
		assert.Equal(t, "tok-1", r.Header.Get("accesstoken"))
		json.NewEncoder(w).Encode(threadsResponse{Threads: []RawThread{{ID: "th-1"}}})
	}))
	defer server.Close()

	threads, err := newTestClient(t, server.URL).ListThreads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.True(t, registered.Load())
}

func TestClientReregistersOnUnauthorized(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/register") {
			json.NewEncoder(w).Encode(map[string]string{"accessToken": "tok-fresh"})
			return
		}
		if calls.Add(1) == 1 {
			// Stale token on the first attempt.
			assert.Equal(t, "tok-stale", r.Header.Get("accesstoken"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "tok-fresh", r.Header.Get("accesstoken"))
		json.NewEncoder(w).Encode(threadsResponse{Threads: []RawThread{{ID: "th-1"}}})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.token = "tok-stale"

	threads, err := c.ListThreads(context.Background())
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientSendMessagePayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/register") {
			json.NewEncoder(w).Encode(map[string]string{"accessToken": "tok-1"})
			return
		}
		require.Equal(t, "/app1/mo", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "app1/u1/d1", body["clientId"])
		assert.Equal(t, "hello", body["message"])
		assert.Equal(t, "q1", body["relatedTid"])
		assert.Equal(t, "cmid-1", body["clientMessageId"])
		assert.Equal(t, true, body["outgoing"])

		json.NewEncoder(w).Encode(RawEvent{TID: "srv-1"})
	}))
	defer server.Close()

	resp, err := newTestClient(t, server.URL).SendMessage(context.Background(), "th-1", "hello", nil, SendOptions{
		RelatedTID:      "q1",
		ClientMessageID: "cmid-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", resp.TID)
}

func TestClientVendorErrorSurfacesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/register") {
			json.NewEncoder(w).Encode(map[string]string{"accessToken": "tok-1"})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).FetchHistory(context.Background(), "th-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
