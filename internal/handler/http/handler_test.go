package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openkin/circlesync/internal/config"
	"github.com/openkin/circlesync/internal/logger"
	"github.com/openkin/circlesync/internal/realtime"
	"github.com/openkin/circlesync/internal/service"
	"github.com/openkin/circlesync/internal/store"
	"github.com/openkin/circlesync/internal/utils"
	"github.com/openkin/circlesync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─────────────────────────────────────────────────────────────────────────────
// Stubs
// ─────────────────────────────────────────────────────────────────────────────

type stubLedger struct {
	synced    int
	appendErr error
	changes   []models.SyncChange
	snapshot  models.CircleSnapshot
	watermark int64
}

func (s *stubLedger) AppendBatch(ctx context.Context, circleID, deviceID string, changes []models.SyncChange) (int, error) {
	if s.appendErr != nil {
		return 0, s.appendErr
	}
	if s.synced > 0 {
		return s.synced, nil
	}
	return len(changes), nil
}

func (s *stubLedger) ListSince(ctx context.Context, circleID string, since int64) ([]models.SyncChange, error) {
	return s.changes, nil
}

func (s *stubLedger) LatestVersion(ctx context.Context, circleID string) (int64, error) {
	return s.watermark, nil
}

func (s *stubLedger) Snapshot(ctx context.Context, circleID string) (models.CircleSnapshot, error) {
	return s.snapshot, nil
}

type stubCircles struct {
	member bool
}

func (s *stubCircles) GetCircle(ctx context.Context, circleID string) (models.CareCircle, error) {
	return models.CareCircle{ID: circleID, DisplayName: "Family"}, nil
}

func (s *stubCircles) IsMember(ctx context.Context, circleID string, userID int64) (bool, error) {
	return s.member, nil
}

func (s *stubCircles) ListMembers(ctx context.Context, circleID string) ([]models.CircleMember, error) {
	return nil, nil
}

type stubInvitations struct {
	invitation models.Invitation
	findErr    error
}

func (s *stubInvitations) FindInvitation(ctx context.Context, token string) (models.Invitation, error) {
	return s.invitation, s.findErr
}

func (s *stubInvitations) ConsumeInvitation(ctx context.Context, token string, userID int64) (models.Invitation, error) {
	inv := s.invitation
	inv.Consumed = true
	return inv, nil
}

type stubUsers struct{}

func (s *stubUsers) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	user.UserID = 42
	return user, nil
}

func (s *stubUsers) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	return models.User{}, store.ErrNoUserWasFound
}

// captureBroadcaster records broadcast frames instead of delivering them.
type captureBroadcaster struct {
	frames []models.RealtimeFrame
}

func (c *captureBroadcaster) Broadcast(ctx context.Context, circleID string, frame models.RealtimeFrame) {
	c.frames = append(c.frames, frame)
}

// ─────────────────────────────────────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────────────────────────────────────

type testEnv struct {
	handler     *Handler
	broadcaster *captureBroadcaster
	auth        service.AuthService
	ledger      *stubLedger
	circles     *stubCircles
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.Nop()
	auth := service.NewAuthService(config.Auth{
		TokenSignKey:  "test-sign-key",
		TokenIssuer:   "circlesync-test",
		TokenDuration: time.Hour,
	}, log)

	ledger := &stubLedger{watermark: 3}
	circles := &stubCircles{member: true}
	expires := time.Now().Add(24 * time.Hour)
	invitations := &stubInvitations{invitation: models.Invitation{
		Token:     "tok-1",
		CircleID:  "circle-1",
		Email:     "kin@example.com",
		Role:      models.RoleCaregiver,
		ExpiresAt: &expires,
	}}

	services := &service.Services{
		AuthService:       auth,
		SyncService:       service.NewSyncService(ledger, circles, log),
		InvitationService: service.NewInvitationService(invitations, &stubUsers{}, circles, auth, log),
	}

	hub := realtime.NewHub(config.Realtime{
		PingInterval: 30 * time.Second,
		WriteTimeout: time.Second,
		SendBuffer:   4,
	}, log)
	broadcaster := &captureBroadcaster{}

	return &testEnv{
		handler:     NewHandler(services, hub, broadcaster, circles, log),
		broadcaster: broadcaster,
		auth:        auth,
		ledger:      ledger,
		circles:     circles,
	}
}

func (e *testEnv) bearerFor(t *testing.T, userID int64) string {
	t.Helper()
	token, err := e.auth.CreateToken(context.Background(), models.User{UserID: userID})
	require.NoError(t, err)
	return "Bearer " + token.String()
}

func validPushBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(models.PushRequest{
		DeviceID: "device-1",
		Changes: []models.SyncChange{{
			ID:         "c1",
			EntityType: "medication",
			EntityID:   "med-1",
			Action:     models.ActionCreate,
			Data:       json.RawMessage(`{"name":"aspirin"}`),
			Timestamp:  time.Now(),
		}},
	})
	require.NoError(t, err)
	return body
}

// ─────────────────────────────────────────────────────────────────────────────
// Push
// ─────────────────────────────────────────────────────────────────────────────

func TestPushChanges_Success(t *testing.T) {
	env := newTestEnv(t)
	router := env.handler.Init()

	req := httptest.NewRequest(http.MethodPost, "/api/circles/circle-1/sync", bytes.NewReader(validPushBody(t)))
	req.Header.Set("Authorization", env.bearerFor(t, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.PushResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Synced)
	assert.NotNil(t, resp.Conflicts)

	require.Len(t, env.broadcaster.frames, 1)
	frame := env.broadcaster.frames[0]
	assert.Equal(t, models.FrameSyncUpdate, frame.Type)
	assert.Equal(t, "circle-1", frame.CircleID)
	assert.Equal(t, "device-1", frame.DeviceID)
	assert.Equal(t, 1, frame.Count)
}

func TestPushChanges_MissingAuth(t *testing.T) {
	env := newTestEnv(t)
	router := env.handler.Init()

	req := httptest.NewRequest(http.MethodPost, "/api/circles/circle-1/sync", bytes.NewReader(validPushBody(t)))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPushChanges_NotAMember(t *testing.T) {
	env := newTestEnv(t)
	env.circles.member = false
	router := env.handler.Init()

	req := httptest.NewRequest(http.MethodPost, "/api/circles/circle-1/sync", bytes.NewReader(validPushBody(t)))
	req.Header.Set("Authorization", env.bearerFor(t, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, env.broadcaster.frames, "rejected pushes must not broadcast")
}

func TestPushChanges_MalformedJSON(t *testing.T) {
	env := newTestEnv(t)
	router := env.handler.Init()

	req := httptest.NewRequest(http.MethodPost, "/api/circles/circle-1/sync", bytes.NewReader([]byte(`{not json`)))
	req.Header.Set("Authorization", env.bearerFor(t, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPushChanges_MalformedBatch(t *testing.T) {
	env := newTestEnv(t)
	router := env.handler.Init()

	body, err := json.Marshal(models.PushRequest{DeviceID: "", Changes: nil})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/circles/circle-1/sync", bytes.NewReader(body))
	req.Header.Set("Authorization", env.bearerFor(t, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPushChanges_PersistenceFailure(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.appendErr = store.ErrPersistenceFailure
	router := env.handler.Init()

	req := httptest.NewRequest(http.MethodPost, "/api/circles/circle-1/sync", bytes.NewReader(validPushBody(t)))
	req.Header.Set("Authorization", env.bearerFor(t, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, env.broadcaster.frames)
}

// ─────────────────────────────────────────────────────────────────────────────
// Pull
// ─────────────────────────────────────────────────────────────────────────────

func TestPullChanges_SnapshotWithoutSince(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.snapshot = models.CircleSnapshot{
		Medications: []json.RawMessage{json.RawMessage(`{"name":"aspirin"}`)},
	}
	router := env.handler.Init()

	req := httptest.NewRequest(http.MethodGet, "/api/circles/circle-1/sync", nil)
	req.Header.Set("Authorization", env.bearerFor(t, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.PullResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Snapshot)
	assert.Len(t, resp.Snapshot.Medications, 1)
	assert.Equal(t, int64(3), resp.Watermark)
}

func TestPullChanges_WithSince(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.changes = []models.SyncChange{{ID: "c3", Version: 3}}
	router := env.handler.Init()

	req := httptest.NewRequest(http.MethodGet, "/api/circles/circle-1/sync?since=2", nil)
	req.Header.Set("Authorization", env.bearerFor(t, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.PullResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Snapshot)
	require.Len(t, resp.Changes, 1)
	assert.Equal(t, "c3", resp.Changes[0].ID)
}

func TestPullChanges_InvalidSince(t *testing.T) {
	env := newTestEnv(t)
	router := env.handler.Init()

	for _, since := range []string{"abc", "-1", "1.5"} {
		req := httptest.NewRequest(http.MethodGet, "/api/circles/circle-1/sync?since="+since, nil)
		req.Header.Set("Authorization", env.bearerFor(t, 1))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "since=%s", since)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Invitations
// ─────────────────────────────────────────────────────────────────────────────

func TestAcceptInvitation_Success(t *testing.T) {
	env := newTestEnv(t)
	router := env.handler.Init()

	body, err := json.Marshal(models.AcceptInvitationRequest{Password: "s3cret"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/invitations/tok-1/accept", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.AcceptInvitationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "circle-1", resp.Circle.ID)
	assert.Equal(t, int64(42), resp.User.UserID)

	require.Len(t, env.broadcaster.frames, 1)
	assert.Equal(t, models.FrameMemberJoined, env.broadcaster.frames[0].Type)
	assert.Equal(t, int64(42), env.broadcaster.frames[0].UserID)
}

func TestAcceptInvitation_ConsumedTokenGone(t *testing.T) {
	env := newTestEnv(t)
	router := env.handler.Init()

	// first accept consumes, the stub then reports it consumed
	body, err := json.Marshal(models.AcceptInvitationRequest{Password: "s3cret"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/invitations/tok-1/accept", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	envGone := newTestEnv(t)
	envGone.handler.services.InvitationService = service.NewInvitationService(
		&stubInvitations{findErr: store.ErrInvitationInvalid}, &stubUsers{}, envGone.circles, envGone.auth, logger.Nop(),
	)
	routerGone := envGone.handler.Init()

	req = httptest.NewRequest(http.MethodPost, "/api/invitations/tok-1/accept", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	routerGone.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusGone, rec.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Context propagation
// ─────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_StoresUserID(t *testing.T) {
	env := newTestEnv(t)

	var gotUserID int64
	var found bool
	probe := env.handler.auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, found = utils.GetUserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", env.bearerFor(t, 77))
	probe.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, found)
	assert.Equal(t, int64(77), gotUserID)
}

func TestAuthMiddleware_RejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)
	router := env.handler.Init()

	req := httptest.NewRequest(http.MethodGet, "/api/circles/circle-1/sync", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
