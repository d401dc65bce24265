package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/models"
)

func newTestAdapter(t *testing.T, baseURL string) ServerAdapter {
	t.Helper()

	a, err := NewHTTPServerAdapter(config.DeviceAdapter{
		HTTPAddress:    baseURL,
		RequestTimeout: 5 * time.Second,
	}, logger.Nop())
	require.NoError(t, err)

	return a
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

// ─── normalizeBaseURL ────────────────────────────────────────────────────────

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{name: "bare host and port", address: "localhost:8080", want: "http://localhost:8080"},
		{name: "explicit scheme", address: "https://sync.example.com", want: "https://sync.example.com"},
		{name: "trailing slash trimmed", address: "http://localhost:8080/", want: "http://localhost:8080"},
		{name: "surrounding whitespace", address: "  localhost:8080  ", want: "http://localhost:8080"},
		{name: "empty", address: "", wantErr: true},
		{name: "whitespace only", address: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeBaseURL(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ─── AcceptInvitation ────────────────────────────────────────────────────────

func TestHTTPServerAdapter_AcceptInvitation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/invitations/invite-1/accept", r.URL.Path)

		var req models.AcceptInvitationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "hunter2", req.Password)

		writeJSON(t, w, http.StatusOK, models.AcceptInvitationResponse{
			Token:  "session-token",
			User:   models.User{UserID: 7, Email: "carer@example.com"},
			Circle: models.CareCircle{ID: "circle-1", DisplayName: "Mum"},
		})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)

	resp, err := a.AcceptInvitation(context.Background(), "invite-1", models.AcceptInvitationRequest{Password: "hunter2"})
	require.NoError(t, err)

	assert.Equal(t, "session-token", resp.Token)
	assert.Equal(t, "circle-1", resp.Circle.ID)
	assert.Equal(t, "session-token", a.Token(), "session token should be stored for later requests")
}

func TestHTTPServerAdapter_AcceptInvitation_Consumed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invitation is invalid", http.StatusGone)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)

	_, err := a.AcceptInvitation(context.Background(), "stale", models.AcceptInvitationRequest{Password: "x"})
	assert.ErrorIs(t, err, ErrInvitationInvalid)
	assert.Empty(t, a.Token())
}

// ─── PushChanges ─────────────────────────────────────────────────────────────

func TestHTTPServerAdapter_PushChanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/circles/circle-1/sync", r.URL.Path)
		require.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))

		var req models.PushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Changes, 2)
		require.Equal(t, "device-1", req.DeviceID)

		writeJSON(t, w, http.StatusOK, models.PushResponse{Synced: 2, Conflicts: []models.SyncChange{}})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	a.SetToken("session-token")

	resp, err := a.PushChanges(context.Background(), "circle-1", models.PushRequest{
		DeviceID: "device-1",
		Changes: []models.SyncChange{
			{ID: "chg-1", EntityType: "medication", EntityID: "med-1", Action: models.ActionCreate},
			{ID: "chg-2", EntityType: "note", EntityID: "note-1", Action: models.ActionDelete},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Synced)
}

func TestHTTPServerAdapter_PushChanges_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "bad request", status: http.StatusBadRequest, wantErr: ErrBadRequest},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: ErrUnauthorized},
		{name: "not a member", status: http.StatusForbidden, wantErr: ErrNotAMember},
		{name: "circle not found", status: http.StatusNotFound, wantErr: ErrCircleNotFound},
		{name: "server failure", status: http.StatusInternalServerError, wantErr: ErrServerFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, tt.name, tt.status)
			}))
			defer srv.Close()

			a := newTestAdapter(t, srv.URL)
			a.SetToken("session-token")

			_, err := a.PushChanges(context.Background(), "circle-1", models.PushRequest{DeviceID: "device-1"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPServerAdapter_PushChanges_ServerUnreachable(t *testing.T) {
	// a closed server yields a transport-level error
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	a := newTestAdapter(t, baseURL)

	_, err := a.PushChanges(context.Background(), "circle-1", models.PushRequest{DeviceID: "device-1"})
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

// ─── PullChanges ─────────────────────────────────────────────────────────────

func TestHTTPServerAdapter_PullChanges_Snapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.False(t, r.URL.Query().Has("since"))

		snapshot := models.CircleSnapshot{}
		snapshot.Add("medication", json.RawMessage(`{"name":"aspirin"}`))
		writeJSON(t, w, http.StatusOK, models.PullResponse{Snapshot: &snapshot, Watermark: 12})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	a.SetToken("session-token")

	resp, err := a.PullChanges(context.Background(), "circle-1", nil)
	require.NoError(t, err)

	require.NotNil(t, resp.Snapshot)
	assert.Len(t, resp.Snapshot.Medications, 1)
	assert.Equal(t, int64(12), resp.Watermark)
}

func TestHTTPServerAdapter_PullChanges_Since(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "42", r.URL.Query().Get("since"))

		writeJSON(t, w, http.StatusOK, models.PullResponse{
			Changes:   []models.SyncChange{{ID: "chg-9", Version: 43}},
			Watermark: 43,
		})
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	a.SetToken("session-token")

	since := int64(42)
	resp, err := a.PullChanges(context.Background(), "circle-1", &since)
	require.NoError(t, err)

	require.Len(t, resp.Changes, 1)
	assert.Equal(t, int64(43), resp.Watermark)
}
