package bot

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

// recordingSender captures outgoing messages instead of hitting Telegram.
type recordingSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if r.err != nil {
		return tgbotapi.Message{}, r.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		r.sent = append(r.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func setupBotDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// a pooled second connection would see a fresh in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
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

		CREATE TABLE laboratories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mother_id INTEGER NOT NULL,
			name TEXT NOT NULL
		);

		CREATE TABLE laboratory_managers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			laboratory_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			telegram_id TEXT NOT NULL DEFAULT ''
		);
	`)
	require.NoError(t, err)
	return db
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func seedVisit(t *testing.T, db *sql.DB, when time.Time) *models.Mother {
	t.Helper()
	ctx := context.Background()

	mother := &models.Mother{Name: "Айгуль Сапарова", Number: "+7 701 555 0123"}
	require.NoError(t, postgres.NewMotherStore(db).Create(ctx, mother))

	visit := &models.Planned{
		MotherID:      mother.ID,
		Plan:          models.PlanLaboratory,
		Note:          "fasting required",
		ScheduledDate: when,
		ScheduledTime: when,
	}
	require.NoError(t, postgres.NewPlannedStore(db).Create(ctx, visit))
	return mother
}

func TestNotifyUpcoming(t *testing.T) {
	db := setupBotDB(t)
	ctx := context.Background()
	labs := postgres.NewLaboratoryStore(db)

	when := time.Date(2024, 1, 4, 9, 30, 0, 0, time.UTC)
	mother := seedVisit(t, db, when)

	lab := &models.Laboratory{MotherID: mother.ID, Name: "Invivo"}
	require.NoError(t, labs.Create(ctx, lab))
	registered := &models.LaboratoryManager{LaboratoryID: lab.ID, Name: "Марат", TelegramID: "42"}
	require.NoError(t, labs.AddManager(ctx, registered))
	require.NoError(t, labs.AddManager(ctx, &models.LaboratoryManager{LaboratoryID: lab.ID, Name: "Без чата"}))

	sender := &recordingSender{}
	notifier := NewNotifier(sender, postgres.NewPlannedStore(db),
		postgres.NewMotherStore(db), labs, testLogger())

	sent, err := notifier.NotifyUpcoming(ctx, when.Add(-time.Hour), when.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Contains(t, msg.Text, "Айгуль Сапарова")
	assert.Contains(t, msg.Text, "04.01.2024 09:30")
	assert.Contains(t, msg.Text, "fasting required")
}

func TestNotifyUpcoming_NoRegisteredManagers(t *testing.T) {
	db := setupBotDB(t)
	when := time.Date(2024, 1, 4, 9, 30, 0, 0, time.UTC)
	seedVisit(t, db, when)

	sender := &recordingSender{}
	notifier := NewNotifier(sender, postgres.NewPlannedStore(db),
		postgres.NewMotherStore(db), postgres.NewLaboratoryStore(db), testLogger())

	sent, err := notifier.NotifyUpcoming(context.Background(), when.Add(-time.Hour), when.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, sender.sent)
}

func TestNotifyUpcoming_OutsideWindow(t *testing.T) {
	db := setupBotDB(t)
	ctx := context.Background()
	labs := postgres.NewLaboratoryStore(db)

	when := time.Date(2024, 1, 4, 9, 30, 0, 0, time.UTC)
	mother := seedVisit(t, db, when)

	lab := &models.Laboratory{MotherID: mother.ID, Name: "Invivo"}
	require.NoError(t, labs.Create(ctx, lab))
	require.NoError(t, labs.AddManager(ctx, &models.LaboratoryManager{LaboratoryID: lab.ID, Name: "Марат", TelegramID: "42"}))

	sender := &recordingSender{}
	notifier := NewNotifier(sender, postgres.NewPlannedStore(db),
		postgres.NewMotherStore(db), labs, testLogger())

	sent, err := notifier.NotifyUpcoming(ctx, when.Add(24*time.Hour), when.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func makeUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}}
}

func TestRegistrar_RegistersKnownManager(t *testing.T) {
	db := setupBotDB(t)
	ctx := context.Background()
	labs := postgres.NewLaboratoryStore(db)

	mother := seedVisit(t, db, time.Now())
	lab := &models.Laboratory{MotherID: mother.ID, Name: "Invivo"}
	require.NoError(t, labs.Create(ctx, lab))
	manager := &models.LaboratoryManager{LaboratoryID: lab.ID, Name: "Марат Оспанов"}
	require.NoError(t, labs.AddManager(ctx, manager))

	sender := &recordingSender{}
	registrar := NewRegistrar(sender, labs, testLogger())
	registrar.handle(ctx, makeUpdate(777, "/start Марат Оспанов"))

	got, err := labs.ManagerByName(ctx, "Марат Оспанов")
	require.NoError(t, err)
	assert.Equal(t, "777", got.TelegramID)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "Registered")
}

func TestRegistrar_UnknownNameRejected(t *testing.T) {
	db := setupBotDB(t)
	labs := postgres.NewLaboratoryStore(db)

	sender := &recordingSender{}
	registrar := NewRegistrar(sender, labs, testLogger())
	registrar.handle(context.Background(), makeUpdate(777, "/start Никто"))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "not recognized")
}

func TestRegistrar_EmptyNamePrompts(t *testing.T) {
	sender := &recordingSender{}
	registrar := NewRegistrar(sender, postgres.NewLaboratoryStore(setupBotDB(t)), testLogger())
	registrar.handle(context.Background(), makeUpdate(777, "/start"))

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "full name")
}

func TestRegistrar_RunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	registrar := NewRegistrar(&recordingSender{}, postgres.NewLaboratoryStore(setupBotDB(t)), testLogger())
	err := registrar.Run(ctx, make(chan tgbotapi.Update))
	assert.ErrorIs(t, err, context.Canceled)
}
