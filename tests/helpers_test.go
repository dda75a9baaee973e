package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"hive/src/lib"
	"hive/src/models"
	"hive/src/server"
	"hive/src/storage"
)

const (
	testJWTSecret  = "integration-secret-0123456789"
	testSystemPriv = "19f43f4ef72a9f5f1385d7caec9da7d769e5f7969b2f5b98d6af95f7ce0d4d95"
)

type engine struct {
	pool    *pgxpool.Pool
	groups  *storage.GroupRepo
	events  *storage.EventsRepo
	feed    *storage.FeedRepo
	api     *server.API
	handler http.Handler
	metrics *lib.Metrics
}

func newEngine(t *testing.T, pool *pgxpool.Pool) *engine {
	t.Helper()
	e := &engine{
		pool:    pool,
		groups:  storage.NewGroupRepo(pool),
		events:  storage.NewEventsRepo(pool),
		feed:    storage.NewFeedRepo(pool),
		metrics: lib.NewMetrics(),
	}
	cfg := lib.Config{
		JWTSecret:          testJWTSecret,
		SystemPrivKey:      testSystemPriv,
		RateLimitBurst:     100,
		RateLimitPerMinute: 600,
		AnnouncementTZ:     time.UTC,
	}
	api, err := server.NewAPI(cfg, e.groups, e.events, e.feed, storage.NewTxManager(pool), e.metrics, lib.NewLogger("ERROR"))
	if err != nil {
		t.Fatalf("NewAPI: %v", err)
	}
	e.api = api
	e.handler = server.NewRouter(api)
	return e
}

func (e *engine) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.api.Identity.IssueToken(userID, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return token
}

// do sends a request as userID (anonymous when empty) and decodes a JSON
// response into out when out is non-nil.
func (e *engine) do(t *testing.T, method, path, userID string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return rec.Code
}

// seedGroup writes a group and its owner membership straight to the store.
func (e *engine) seedGroup(t *testing.T, owner string, visibility models.Visibility, inviteCode string) models.Group {
	t.Helper()
	ctx := context.Background()
	group := models.Group{
		GroupID:    uuid.NewString(),
		Name:       "Neighbourhood",
		Visibility: visibility,
		InviteCode: inviteCode,
		Status:     models.GroupStatusActive,
		CreatedAt:  100,
		CreatedBy:  owner,
		UpdatedAt:  100,
		UpdatedBy:  owner,
	}
	if err := e.groups.InsertGroup(ctx, group); err != nil {
		t.Fatalf("InsertGroup: %v", err)
	}
	e.seedMember(t, group.GroupID, owner, models.MemberRoleOwner)
	return group
}

func (e *engine) seedMember(t *testing.T, groupID, userID string, role models.MemberRole) {
	t.Helper()
	if err := e.groups.InsertMembership(context.Background(), models.Membership{
		GroupID:  groupID,
		UserID:   userID,
		Role:     role,
		JoinedAt: 101,
		AddedBy:  "seed",
	}); err != nil {
		t.Fatalf("InsertMembership(%s): %v", userID, err)
	}
}
