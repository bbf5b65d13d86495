package adminview

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzcare/crm/pkg/assignment"
	"github.com/kzcare/crm/pkg/audit"
	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/perms"
	"github.com/kzcare/crm/pkg/pipeline"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

type panelFixture struct {
	db       *sql.DB
	perms    *perms.Store
	checker  *perms.Checker
	pipeline *pipeline.Service

	mother     *MotherPanel
	banAdd     *BanAddPanel
	banList    *BanListPanel
	firstVisit *FirstVisitPanel
}

func setupPanels(t *testing.T) *panelFixture {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
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
	`)
	require.NoError(t, err)

	permStore := perms.NewStore(db)
	checker := perms.NewChecker(permStore, 0)
	pipe := pipeline.NewService(db, permStore, postgres.NewUserStore(db),
		assignment.NewRandomSelector(1), audit.NewNopLogger(),
		observability.NewLogger(observability.ErrorLevel, io.Discard), nil, checker)

	mothers := postgres.NewMotherStore(db)
	bans := postgres.NewBanStore(db)
	planned := postgres.NewPlannedStore(db)

	return &panelFixture{
		db:         db,
		perms:      permStore,
		checker:    checker,
		pipeline:   pipe,
		mother:     NewMotherPanel(mothers, checker, permStore),
		banAdd:     NewBanAddPanel(checker),
		banList:    NewBanListPanel(bans, checker, permStore, pipe),
		firstVisit: NewFirstVisitPanel(mothers, planned, checker, permStore),
	}
}

func (f *panelFixture) addStaff(t *testing.T, username string, stage models.StageName) *models.User {
	t.Helper()
	u := &models.User{Username: username, Stage: stage, IsStaff: true, IsActive: true}
	require.NoError(t, postgres.NewUserStore(f.db).Create(context.Background(), u))
	return u
}

func TestMotherPanel_ModuleAccess(t *testing.T) {
	f := setupPanels(t)
	ctx := context.Background()
	staff := f.addStaff(t, "aliya", models.StagePrimary)

	// nothing granted yet
	assert.False(t, f.mother.ModuleAllowed(ctx, staff))

	m := &models.Mother{Name: "Aigerim"}
	_, err := f.pipeline.CreateMother(ctx, m, nil)
	require.NoError(t, err)

	assert.True(t, f.mother.ModuleAllowed(ctx, staff))

	// superusers audit, they do not operate: no list-level shortcut
	super := &models.User{Username: "root", Stage: models.StagePrimary, IsSuperuser: true, IsActive: true}
	require.NoError(t, postgres.NewUserStore(f.db).Create(ctx, super))
	assert.False(t, f.mother.ModuleAllowed(ctx, super))

	// but object-level access is unconditional for superusers
	assert.True(t, f.checker.CanObject(ctx, super, perms.ActionView, perms.ModelMother, m.ID))
}

func TestMotherPanel_RevokedLeavesPanel(t *testing.T) {
	f := setupPanels(t)
	ctx := context.Background()
	aliya := f.addStaff(t, "aliya", models.StagePrimary)

	m := &models.Mother{Name: "Aigerim"}
	_, err := f.pipeline.CreateMother(ctx, m, aliya)
	require.NoError(t, err)
	require.True(t, f.mother.ModuleAllowed(ctx, aliya))

	require.NoError(t, f.pipeline.Revoke(ctx, m.ID, "left the program"))

	// The grant survives, but a revoked mother is off every work surface
	// and with her gone the module disappears too.
	list, err := f.mother.Queryset(ctx, aliya)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.False(t, f.mother.ModuleAllowed(ctx, aliya))

	require.NoError(t, f.pipeline.Return(ctx, m.ID))
	list, err = f.mother.Queryset(ctx, aliya)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFirstVisitPanel_RevokedLeavesPanel(t *testing.T) {
	f := setupPanels(t)
	ctx := context.Background()
	f.addStaff(t, "aliya", models.StagePrimary)
	gulnaz := f.addStaff(t, "gulnaz", models.StageFirstVisit)

	m := &models.Mother{Name: "Madina"}
	_, err := f.pipeline.CreateMother(ctx, m, nil)
	require.NoError(t, err)
	_, err = f.pipeline.MoveToFirstVisit(ctx, m.ID, gulnaz)
	require.NoError(t, err)
	require.True(t, f.firstVisit.ModuleAllowed(ctx, gulnaz))

	require.NoError(t, f.pipeline.Revoke(ctx, m.ID, "left the program"))

	list, err := f.firstVisit.Queryset(ctx, gulnaz)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.False(t, f.firstVisit.ModuleAllowed(ctx, gulnaz))
}

func TestMotherPanel_QuerysetFollowsGrants(t *testing.T) {
	f := setupPanels(t)
	ctx := context.Background()
	aliya := f.addStaff(t, "aliya", models.StagePrimary)

	mine := &models.Mother{Name: "mine"}
	_, err := f.pipeline.CreateMother(ctx, mine, nil)
	require.NoError(t, err)

	// a second mother assigned to someone else
	dina := f.addStaff(t, "dina", models.StagePrimary)
	theirs := &models.Mother{Name: "theirs"}
	_, err = f.pipeline.CreateMother(ctx, theirs, dina)
	require.NoError(t, err)

	list, err := f.mother.Queryset(ctx, aliya)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	// a base model permission opens the whole stage
	require.NoError(t, f.perms.GrantModelPerm(ctx, aliya.ID,
		perms.BasePerm(perms.ActionView, perms.ModelMother)))
	list, err = f.mother.Queryset(ctx, aliya)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMotherPanel_LosesAccessAfterTransition(t *testing.T) {
	f := setupPanels(t)
	ctx := context.Background()
	staff := f.addStaff(t, "aliya", models.StagePrimary)
	f.addStaff(t, "madina", models.StageBan)

	m := &models.Mother{Name: "Aigerim"}
	_, err := f.pipeline.CreateMother(ctx, m, nil)
	require.NoError(t, err)
	require.True(t, f.mother.ModuleAllowed(ctx, staff))

	_, _, err = f.pipeline.MoveToBan(ctx, m.ID, "stopped answering", nil)
	require.NoError(t, err)

	// the grant survives but the record is no longer actionable
	assert.False(t, f.mother.ModuleAllowed(ctx, staff))
}

func TestBanAddPanel_HiddenFromEveryone(t *testing.T) {
	f := setupPanels(t)
	ctx := context.Background()

	staff := f.addStaff(t, "aliya", models.StagePrimary)
	super := &models.User{Username: "root", IsSuperuser: true, IsActive: true, Stage: models.StagePrimary}
	require.NoError(t, postgres.NewUserStore(f.db).Create(ctx, super))

	assert.False(t, f.banAdd.ModuleAllowed(ctx, staff))
	assert.False(t, f.banAdd.ModuleAllowed(ctx, super))
	assert.False(t, f.banAdd.ModuleAllowed(ctx, nil))
}

func TestBanListPanel_Lifecycle(t *testing.T) {
	f := setupPanels(t)
	ctx := context.Background()
	f.addStaff(t, "aliya", models.StagePrimary)
	banStaff := f.addStaff(t, "madina", models.StageBan)

	m := &models.Mother{Name: "Aigerim"}
	_, err := f.pipeline.CreateMother(ctx, m, nil)
	require.NoError(t, err)

	assert.False(t, f.banList.ModuleAllowed(ctx, banStaff))

	ban, _, err := f.pipeline.MoveToBan(ctx, m.ID, "stopped answering", nil)
	require.NoError(t, err)

	assert.True(t, f.banList.ModuleAllowed(ctx, banStaff))

	list, err := f.banList.Queryset(ctx, banStaff)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ban.ID, list[0].ID)

	// someone without a grant cannot act
	stranger := f.addStaff(t, "nobody", models.StageBan)
	_, err = f.banList.OutFromBan(ctx, stranger, ban.ID)
	assert.ErrorIs(t, err, perms.ErrDenied)

	manager, err := f.banList.OutFromBan(ctx, banStaff, ban.ID)
	require.NoError(t, err)
	require.NotNil(t, manager)
	assert.Equal(t, "aliya", manager.Username)

	// nothing actionable left
	assert.False(t, f.banList.ModuleAllowed(ctx, banStaff))
	list, err = f.banList.Queryset(ctx, banStaff)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFirstVisitPanel_VisibleAfterTransition(t *testing.T) {
	f := setupPanels(t)
	ctx := context.Background()
	f.addStaff(t, "aliya", models.StagePrimary)
	visitStaff := f.addStaff(t, "gulnaz", models.StageFirstVisit)

	m := &models.Mother{Name: "Aigerim"}
	_, err := f.pipeline.CreateMother(ctx, m, nil)
	require.NoError(t, err)

	assert.False(t, f.firstVisit.ModuleAllowed(ctx, visitStaff))

	_, err = f.pipeline.MoveToFirstVisit(ctx, m.ID, nil)
	require.NoError(t, err)

	assert.True(t, f.firstVisit.ModuleAllowed(ctx, visitStaff))
	list, err := f.firstVisit.Queryset(ctx, visitStaff)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, m.ID, list[0].ID)
}

func TestFirstVisitPanel_SplitByPlan(t *testing.T) {
	f := setupPanels(t)
	ctx := context.Background()
	f.addStaff(t, "aliya", models.StagePrimary)
	visitStaff := f.addStaff(t, "gulnaz", models.StageFirstVisit)

	scheduled := &models.Mother{Name: "Aigerim"}
	unscheduled := &models.Mother{Name: "Madina"}
	for _, m := range []*models.Mother{scheduled, unscheduled} {
		_, err := f.pipeline.CreateMother(ctx, m, nil)
		require.NoError(t, err)
		_, err = f.pipeline.MoveToFirstVisit(ctx, m.ID, nil)
		require.NoError(t, err)
	}

	planned := postgres.NewPlannedStore(f.db)
	visit := &models.Planned{
		MotherID:      scheduled.ID,
		Plan:          models.PlanLaboratory,
		ScheduledDate: time.Now().Add(24 * time.Hour),
		ScheduledTime: time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, planned.Create(ctx, visit))

	withPlan, withoutPlan, err := f.firstVisit.SplitByPlan(ctx, visitStaff)
	require.NoError(t, err)
	require.Len(t, withPlan, 1)
	assert.Equal(t, scheduled.ID, withPlan[0].ID)
	require.Len(t, withoutPlan, 1)
	assert.Equal(t, unscheduled.ID, withoutPlan[0].ID)

	// A finished plan no longer counts as scheduled.
	require.NoError(t, planned.Finish(ctx, visit.ID))
	withPlan, withoutPlan, err = f.firstVisit.SplitByPlan(ctx, visitStaff)
	require.NoError(t, err)
	assert.Empty(t, withPlan)
	assert.Len(t, withoutPlan, 2)
}

func TestMotherPanel_Fields(t *testing.T) {
	f := setupPanels(t)

	add := f.mother.Fields(ViewModeAdd)
	assert.Contains(t, add, "name")
	assert.NotContains(t, add, "created_at")

	change := f.mother.Fields(ViewModeChange)
	assert.Contains(t, change, "created_at")

	byDate := f.mother.Fields(ViewModeFilteredByDate)
	assert.Equal(t, "scheduled_date", byDate[0])
	assert.NotContains(t, byDate, "scheduled_time")

	byDateTime := f.mother.Fields(ViewModeFilteredByDateTime)
	assert.Contains(t, byDateTime, "scheduled_time")

	// read-only mode locks every field
	assert.Equal(t, f.mother.Fields(ViewModeReadOnly), f.mother.ReadonlyFields(ViewModeReadOnly))
}
