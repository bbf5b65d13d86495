package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzcare/crm/pkg/adminview"
	"github.com/kzcare/crm/pkg/assignment"
	"github.com/kzcare/crm/pkg/audit"
	"github.com/kzcare/crm/pkg/auth"
	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/perms"
	"github.com/kzcare/crm/pkg/pipeline"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

// fakeBlob keeps uploaded files in memory.
type fakeBlob struct {
	objects map[string][]byte
	n       int
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: make(map[string][]byte)}
}

func (f *fakeBlob) Put(_ context.Context, motherID int64, kind models.DocumentKind, filename string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.n++
	key := fmt.Sprintf("documents/%d/%s/%d_%s", motherID, kind, f.n, filename)
	f.objects[key] = data
	return key, nil
}

func (f *fakeBlob) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlob) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

type apiFixture struct {
	db     *sql.DB
	server *Server
	tokens *auth.Store
	users  *postgres.UserStore
	blob   *fakeBlob
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// a pooled second connection would see a fresh in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			stage TEXT NOT NULL DEFAULT 'primary',
			timezone TEXT NOT NULL DEFAULT 'UTC',
			is_staff BOOLEAN NOT NULL DEFAULT 0,
			is_superuser BOOLEAN NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE mothers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			number TEXT NOT NULL DEFAULT '',
			program TEXT NOT NULL DEFAULT '',
			residence TEXT NOT NULL DEFAULT '',
			height_and_weight TEXT NOT NULL DEFAULT '',
			bad_habits TEXT NOT NULL DEFAULT '',
			caesarean TEXT NOT NULL DEFAULT '',
			children_age TEXT NOT NULL DEFAULT '',
			age TEXT NOT NULL DEFAULT '',
			citizenship TEXT NOT NULL DEFAULT '',
			blood TEXT NOT NULL DEFAULT '',
			maried TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE stages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mother_id INTEGER NOT NULL,
			stage TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			finished BOOLEAN NOT NULL DEFAULT 0
		);

		CREATE TABLE bans (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mother_id INTEGER NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			banned BOOLEAN NOT NULL DEFAULT 0
		);

		CREATE TABLE states (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mother_id INTEGER NOT NULL,
			condition TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			scheduled_date TIMESTAMP NOT NULL,
			scheduled_time TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			finished BOOLEAN NOT NULL DEFAULT 0
		);

		CREATE TABLE comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mother_id INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			revoked BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mother_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			object_key TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE planned (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mother_id INTEGER NOT NULL,
			plan TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			scheduled_date TIMESTAMP NOT NULL,
			scheduled_time TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			finished BOOLEAN NOT NULL DEFAULT 0
		);

		CREATE TABLE permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			codename TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			model TEXT NOT NULL
		);

		CREATE TABLE object_grants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			permission_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			object_type TEXT NOT NULL,
			object_id INTEGER NOT NULL,
			granted_at TIMESTAMP NOT NULL,
			UNIQUE(permission_id, user_id, object_type, object_id)
		);

		CREATE TABLE model_perms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			perm TEXT NOT NULL,
			UNIQUE(user_id, perm)
		);

		CREATE TABLE api_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			token_prefix TEXT NOT NULL,
			name TEXT NOT NULL,
			expires_at TIMESTAMP,
			last_used_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			revoked_at TIMESTAMP
		);

		CREATE TABLE audit_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TIMESTAMP NOT NULL,
			event_type TEXT NOT NULL,
			status TEXT NOT NULL,
			user_id INTEGER,
			username TEXT,
			resource_type TEXT,
			resource_id TEXT,
			message TEXT,
			error_message TEXT,
			metadata TEXT
		);
	`)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	auditLogger, err := audit.NewDBLogger(db)
	require.NoError(t, err)

	permStore := perms.NewStore(db)
	checker := perms.NewChecker(permStore, time.Minute)
	users := postgres.NewUserStore(db)
	pipe := pipeline.NewService(db, permStore, users,
		assignment.NewRandomSelector(1), auditLogger, logger, nil, checker)
	tokens := auth.NewStore(db, auditLogger)
	blob := newFakeBlob()

	server := NewServer(Deps{
		Perms:     permStore,
		Checker:   checker,
		Pipeline:  pipe,
		Tokens:    tokens,
		Users:     users,
		Mothers:   postgres.NewMotherStore(db),
		Bans:      postgres.NewBanStore(db),
		Planned:   postgres.NewPlannedStore(db),
		Documents: postgres.NewDocumentStore(db),
		Blobs:     blob,
		Audit:     auditLogger,
		Logger:    logger,
	})

	return &apiFixture{db: db, server: server, tokens: tokens, users: users, blob: blob}
}

// staff creates an active staff account on a stage and returns it with
// a valid bearer token.
func (f *apiFixture) staff(t *testing.T, username string, stage models.StageName) (*models.User, string) {
	t.Helper()
	u := &models.User{Username: username, Stage: stage, Timezone: "Europe/Kiev", IsStaff: true, IsActive: true}
	require.NoError(t, f.users.Create(context.Background(), u))
	_, plaintext, err := f.tokens.Issue(context.Background(), u.ID, "test", nil)
	require.NoError(t, err)
	return u, plaintext
}

func (f *apiFixture) superuser(t *testing.T) (*models.User, string) {
	t.Helper()
	u := &models.User{Username: "root", Stage: models.StagePrimary, IsStaff: true, IsSuperuser: true, IsActive: true}
	require.NoError(t, f.users.Create(context.Background(), u))
	_, plaintext, err := f.tokens.Issue(context.Background(), u.ID, "root", nil)
	require.NoError(t, err)
	return u, plaintext
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	f := setupAPI(t)
	rec := f.do(t, http.MethodGet, "/api/v1/mothers", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateMotherAssignsManager(t *testing.T) {
	f := setupAPI(t)
	_, token := f.staff(t, "aliya", models.StagePrimary)

	rec := f.do(t, http.MethodPost, "/api/v1/mothers", token,
		createMotherRequest{Mother: models.Mother{Name: "Айгуль", Number: "+7 701"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[assignedResponse](t, rec)
	assert.Equal(t, "aliya", resp.Manager)
	assert.NotZero(t, resp.Mother.ID)
	assert.NotEmpty(t, resp.Mother.WhenCreated)
}

func TestCreateMotherHonorsExplicitManager(t *testing.T) {
	f := setupAPI(t)
	_, token := f.staff(t, "aliya", models.StagePrimary)
	f.staff(t, "dina", models.StagePrimary)

	rec := f.do(t, http.MethodPost, "/api/v1/mothers", token,
		createMotherRequest{Mother: models.Mother{Name: "Анна"}, ManagerUsername: "dina"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "dina", decode[assignedResponse](t, rec).Manager)
}

func TestListMothersFollowsGrants(t *testing.T) {
	f := setupAPI(t)
	_, aliyaToken := f.staff(t, "aliya", models.StagePrimary)

	rec := f.do(t, http.MethodPost, "/api/v1/mothers", aliyaToken,
		createMotherRequest{Mother: models.Mother{Name: "Айгуль"}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/mothers", aliyaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]motherResponse](t, rec), 1)

	// A manager with no grants has no panel at all.
	_, straToken := f.staff(t, "stranger", models.StagePrimary)
	rec = f.do(t, http.MethodGet, "/api/v1/mothers", straToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFirstVisitPlanFilter(t *testing.T) {
	f := setupAPI(t)
	_, aliyaToken := f.staff(t, "aliya", models.StagePrimary)
	_, gulnazToken := f.staff(t, "gulnaz", models.StageFirstVisit)

	rec := f.do(t, http.MethodPost, "/api/v1/mothers", aliyaToken,
		createMotherRequest{Mother: models.Mother{Name: "Айгуль"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[assignedResponse](t, rec)

	rec = f.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/mothers/%d/first-visit", created.Mother.ID), aliyaToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/first-visit?plan=without", gulnazToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]motherResponse](t, rec), 1)

	require.NoError(t, postgres.NewPlannedStore(f.db).Create(context.Background(), &models.Planned{
		MotherID:      created.Mother.ID,
		Plan:          models.PlanLaboratory,
		ScheduledDate: time.Now().Add(24 * time.Hour),
		ScheduledTime: time.Now().Add(24 * time.Hour),
	}))

	rec = f.do(t, http.MethodGet, "/api/v1/first-visit?plan=with", gulnazToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]motherResponse](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/v1/first-visit?plan=without", gulnazToken, nil)
	assert.Empty(t, decode[[]motherResponse](t, rec))

	rec = f.do(t, http.MethodGet, "/api/v1/first-visit?plan=sometime", gulnazToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuperuserDeniedListAllowedObject(t *testing.T) {
	f := setupAPI(t)
	_, aliyaToken := f.staff(t, "aliya", models.StagePrimary)
	_, rootToken := f.superuser(t)

	rec := f.do(t, http.MethodPost, "/api/v1/mothers", aliyaToken,
		createMotherRequest{Mother: models.Mother{Name: "Айгуль"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	motherID := decode[assignedResponse](t, rec).Mother.ID

	// The list-level gate has no superuser shortcut.
	rec = f.do(t, http.MethodGet, "/api/v1/mothers", rootToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Object access keeps the override.
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/mothers/%d", motherID), rootToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWhenCreatedUsesCallerTimezone(t *testing.T) {
	f := setupAPI(t)
	_, token := f.staff(t, "aliya", models.StagePrimary)

	rec := f.do(t, http.MethodPost, "/api/v1/mothers", token,
		createMotherRequest{Mother: models.Mother{Name: "Айгуль"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[assignedResponse](t, rec)

	mother, err := postgres.NewMotherStore(f.db).GetByID(context.Background(), resp.Mother.ID)
	require.NoError(t, err)
	assert.Equal(t, adminview.WhenCreated(mother.CreatedAt, "Europe/Kiev"), resp.Mother.WhenCreated)
}

func TestBanFlow(t *testing.T) {
	f := setupAPI(t)
	_, aliyaToken := f.staff(t, "aliya", models.StagePrimary)
	_, banToken := f.staff(t, "bekzat", models.StageBan)

	rec := f.do(t, http.MethodPost, "/api/v1/mothers", aliyaToken,
		createMotherRequest{Mother: models.Mother{Name: "Айгуль"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	motherID := decode[assignedResponse](t, rec).Mother.ID

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/mothers/%d/ban", motherID), aliyaToken,
		transitionRequest{Comment: "no contact"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The ban lands on the ban-stage manager's panel.
	rec = f.do(t, http.MethodGet, "/api/v1/bans", banToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bans := decode[[]*models.Ban](t, rec)
	require.Len(t, bans, 1)
	assert.Equal(t, "no contact", bans[0].Comment)

	// Re-banning while on the ban stage conflicts.
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/mothers/%d/ban", motherID), aliyaToken,
		transitionRequest{Comment: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOutFromBan(t *testing.T) {
	f := setupAPI(t)
	_, aliyaToken := f.staff(t, "aliya", models.StagePrimary)
	_, banToken := f.staff(t, "bekzat", models.StageBan)
	_, straToken := f.staff(t, "stranger", models.StageFirstVisit)

	rec := f.do(t, http.MethodPost, "/api/v1/mothers", aliyaToken,
		createMotherRequest{Mother: models.Mother{Name: "Айгуль"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	motherID := decode[assignedResponse](t, rec).Mother.ID

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/mothers/%d/ban", motherID), aliyaToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/bans", banToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bans := decode[[]*models.Ban](t, rec)
	require.Len(t, bans, 1)

	// Only the granted ban-stage manager may resolve.
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bans/%d/out-from-ban", bans[0].ID), straToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bans/%d/out-from-ban", bans[0].ID), banToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The ban panel is empty again.
	rec = f.do(t, http.MethodGet, "/api/v1/bans", banToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPanelFields(t *testing.T) {
	f := setupAPI(t)
	_, token := f.staff(t, "aliya", models.StagePrimary)

	rec := f.do(t, http.MethodGet, "/api/v1/panels/mothers/fields?mode=add", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[panelFieldsResponse](t, rec)
	assert.Equal(t, "add", resp.Mode)
	assert.NotEmpty(t, resp.Fields)

	rec = f.do(t, http.MethodGet, "/api/v1/panels/unknown/fields", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentLifecycle(t *testing.T) {
	f := setupAPI(t)
	_, token := f.staff(t, "aliya", models.StagePrimary)

	rec := f.do(t, http.MethodPost, "/api/v1/mothers", token,
		createMotherRequest{Mother: models.Mother{Name: "Айгуль"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	motherID := decode[assignedResponse](t, rec).Mother.ID

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("kind", string(models.DocumentMain)))
	require.NoError(t, mw.WriteField("note", "passport scan"))
	part, err := mw.CreateFormFile("file", "passport.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/mothers/%d/documents", motherID), &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	up := httptest.NewRecorder()
	f.server.ServeHTTP(up, req)
	require.Equal(t, http.StatusCreated, up.Code, up.Body.String())
	doc := decode[models.Document](t, up)
	assert.Equal(t, "passport.pdf", doc.Name)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/mothers/%d/documents", motherID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]*models.Document](t, rec), 1)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/documents/%d/download", doc.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/documents/%d", doc.ID), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.blob.objects)
}

func TestAuditSearchSuperuserOnly(t *testing.T) {
	f := setupAPI(t)
	_, aliyaToken := f.staff(t, "aliya", models.StagePrimary)
	_, rootToken := f.superuser(t)

	rec := f.do(t, http.MethodPost, "/api/v1/mothers", aliyaToken,
		createMotherRequest{Mother: models.Mother{Name: "Айгуль"}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/audit", aliyaToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/audit?event_types=mother.create", rootToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]*audit.Event](t, rec)
	assert.NotEmpty(t, events)
}

func TestTokenIssueAndRevoke(t *testing.T) {
	f := setupAPI(t)
	_, aliyaToken := f.staff(t, "aliya", models.StagePrimary)
	_, rootToken := f.superuser(t)

	// Non-superusers cannot mint for someone else.
	rec := f.do(t, http.MethodPost, "/api/v1/auth/tokens", aliyaToken,
		issueTokenRequest{Username: "root", Name: "sneaky"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// But can for themselves.
	rec = f.do(t, http.MethodPost, "/api/v1/auth/tokens", aliyaToken,
		issueTokenRequest{Name: "second device"})
	require.Equal(t, http.StatusCreated, rec.Code)
	issued := decode[issueTokenResponse](t, rec)
	assert.True(t, strings.HasPrefix(issued.Plaintext, auth.TokenPrefix))

	// Superusers mint for anyone.
	rec = f.do(t, http.MethodPost, "/api/v1/auth/tokens", rootToken,
		issueTokenRequest{Username: "aliya", Name: "handout", TTLHours: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Revoking an unowned token is forbidden.
	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/auth/tokens/%d", issued.Token.ID), rootToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/mothers", issued.Plaintext, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrashFlowOverHTTP(t *testing.T) {
	f := setupAPI(t)
	_, token := f.staff(t, "aliya", models.StagePrimary)

	rec := f.do(t, http.MethodPost, "/api/v1/mothers", token,
		createMotherRequest{Mother: models.Mother{Name: "Айгуль"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	motherID := decode[assignedResponse](t, rec).Mother.ID

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/mothers/%d/trash", motherID), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Deleting for good requires the trash stage, which now holds.
	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/mothers/%d", motherID), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/mothers/%d", motherID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
