package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

// Registrar binds incoming chats to laboratory managers. A manager
// introduces themselves with "/start Full Name"; the name must match a
// manager record exactly.
type Registrar struct {
	sender Sender
	labs   *postgres.LaboratoryStore
	logger *observability.Logger
}

func NewRegistrar(sender Sender, labs *postgres.LaboratoryStore, logger *observability.Logger) *Registrar {
	return &Registrar{sender: sender, labs: labs, logger: logger}
}

// Run consumes updates until the context is cancelled or the channel
// closes.
func (r *Registrar) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			r.handle(ctx, update)
		}
	}
}

func (r *Registrar) handle(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	name := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/start"))
	if name == "" {
		r.reply(chatID, "Send /start followed by your full name to register.")
		return
	}

	manager, err := r.labs.ManagerByName(ctx, name)
	if errors.Is(err, postgres.ErrNotFound) {
		r.logger.WithField("name", name).Warn("unknown manager name")
		r.reply(chatID, "Name not recognized. Ask your coordinator to add you first.")
		return
	}
	if err != nil {
		r.logger.WithError(err).Error("manager lookup failed")
		return
	}

	if err := r.labs.RegisterManagerChat(ctx, manager.ID, strconv.FormatInt(chatID, 10)); err != nil {
		r.logger.WithError(err).WithField("manager_id", manager.ID).Error("chat registration failed")
		return
	}

	r.logger.WithFields(map[string]interface{}{
		"manager_id": manager.ID,
		"chat_id":    chatID,
	}).Info("manager chat registered")
	r.reply(chatID, "Registered. You will receive laboratory visit notifications here.")
}

func (r *Registrar) reply(chatID int64, text string) {
	if _, err := r.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.logger.WithError(err).Warn("reply failed")
	}
}
