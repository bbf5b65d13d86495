package perms

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzcare/crm/pkg/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	// Minimal tables for testing
	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			stage TEXT NOT NULL DEFAULT 'primary',
			is_staff BOOLEAN NOT NULL DEFAULT 1,
			is_superuser BOOLEAN NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1
		);

		CREATE TABLE permissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			codename TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			model TEXT NOT NULL
		);

		CREATE TABLE object_grants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			permission_id INTEGER NOT NULL REFERENCES permissions(id),
			user_id INTEGER NOT NULL REFERENCES users(id),
			object_type TEXT NOT NULL,
			object_id INTEGER NOT NULL,
			granted_at TIMESTAMP NOT NULL,
			UNIQUE(permission_id, user_id, object_type, object_id)
		);

		CREATE TABLE model_perms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			perm TEXT NOT NULL,
			UNIQUE(user_id, perm)
		);
	`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sql.DB, username string, stage models.StageName) int64 {
	t.Helper()

	res, err := db.Exec(
		`INSERT INTO users (username, stage) VALUES (?, ?)`, username, string(stage))
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestStore_EnsurePermission_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(db)

	cn := Codename{Stage: models.StagePrimary, Model: ModelMother, Username: "olga"}

	first, err := store.EnsurePermission(ctx, cn)
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	assert.Equal(t, "primary_mother_olga", first.Codename)
	assert.Equal(t, "primary mother olga", first.Name)

	second, err := store.EnsurePermission(ctx, cn)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestStore_Grant_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(db)

	userID := createTestUser(t, db, "olga", models.StagePrimary)
	perm, err := store.EnsurePermission(ctx, Codename{
		Stage: models.StagePrimary, Model: ModelMother, Username: "olga",
	})
	require.NoError(t, err)

	require.NoError(t, store.Grant(ctx, perm.ID, userID, ModelMother, 7))
	require.NoError(t, store.Grant(ctx, perm.ID, userID, ModelMother, 7))

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM object_grants`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_HasObjectGrant_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(db)

	userID := createTestUser(t, db, "olga", models.StagePrimary)
	cn := Codename{Stage: models.StagePrimary, Model: ModelMother, Username: "olga"}
	perm, err := store.EnsurePermission(ctx, cn)
	require.NoError(t, err)
	require.NoError(t, store.Grant(ctx, perm.ID, userID, ModelMother, 42))

	// the same codename that granted must also check
	held, err := store.HasObjectGrant(ctx, userID, cn.String(), ModelMother, 42)
	require.NoError(t, err)
	assert.True(t, held)

	held, err = store.HasObjectGrant(ctx, userID, cn.String(), ModelMother, 43)
	require.NoError(t, err)
	assert.False(t, held)

	other := Codename{Stage: models.StageBan, Model: ModelMother, Username: "olga"}
	held, err = store.HasObjectGrant(ctx, userID, other.String(), ModelMother, 42)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestStore_GrantedObjectIDs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(db)

	userID := createTestUser(t, db, "olga", models.StagePrimary)
	otherID := createTestUser(t, db, "dina", models.StagePrimary)

	perm, err := store.EnsurePermission(ctx, Codename{
		Stage: models.StagePrimary, Model: ModelMother, Username: "olga",
	})
	require.NoError(t, err)

	for _, objID := range []int64{1, 2, 5} {
		require.NoError(t, store.Grant(ctx, perm.ID, userID, ModelMother, objID))
	}

	ids, err := store.GrantedObjectIDs(ctx, userID, ModelMother)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 5}, ids)

	ids, err = store.GrantedObjectIDs(ctx, otherID, ModelMother)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_GrantCountsByUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(db)

	olga := createTestUser(t, db, "olga", models.StagePrimary)
	dina := createTestUser(t, db, "dina", models.StagePrimary)

	permOlga, err := store.EnsurePermission(ctx, Codename{
		Stage: models.StagePrimary, Model: ModelMother, Username: "olga",
	})
	require.NoError(t, err)
	permDina, err := store.EnsurePermission(ctx, Codename{
		Stage: models.StagePrimary, Model: ModelMother, Username: "dina",
	})
	require.NoError(t, err)

	require.NoError(t, store.Grant(ctx, permOlga.ID, olga, ModelMother, 1))
	require.NoError(t, store.Grant(ctx, permOlga.ID, olga, ModelMother, 2))
	require.NoError(t, store.Grant(ctx, permDina.ID, dina, ModelMother, 3))

	counts, err := store.GrantCountsByUser(ctx, ModelMother)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[olga])
	assert.Equal(t, 1, counts[dina])
}

func TestStore_ModelPerms(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(db)

	userID := createTestUser(t, db, "olga", models.StagePrimary)

	held, err := store.HasModelPerm(ctx, userID, "mothers.view_ban")
	require.NoError(t, err)
	assert.False(t, held)

	require.NoError(t, store.GrantModelPerm(ctx, userID, "mothers.view_ban"))
	require.NoError(t, store.GrantModelPerm(ctx, userID, "mothers.view_ban"))

	held, err = store.HasModelPerm(ctx, userID, "mothers.view_ban")
	require.NoError(t, err)
	assert.True(t, held)
}

func TestStore_Revoke(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(db)

	userID := createTestUser(t, db, "olga", models.StagePrimary)
	cn := Codename{Stage: models.StagePrimary, Model: ModelMother, Username: "olga"}
	perm, err := store.EnsurePermission(ctx, cn)
	require.NoError(t, err)
	require.NoError(t, store.Grant(ctx, perm.ID, userID, ModelMother, 9))

	require.NoError(t, store.Revoke(ctx, perm.ID, userID, ModelMother, 9))

	held, err := store.HasObjectGrant(ctx, userID, cn.String(), ModelMother, 9)
	require.NoError(t, err)
	assert.False(t, held)
}
