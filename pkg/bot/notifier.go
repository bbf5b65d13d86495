package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

// Sender is the piece of the Telegram client the notifier needs.
// *tgbotapi.BotAPI implements it; tests substitute a recorder.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier pushes upcoming laboratory visits to every manager with a
// registered chat.
type Notifier struct {
	sender  Sender
	planned *postgres.PlannedStore
	mothers *postgres.MotherStore
	labs    *postgres.LaboratoryStore
	logger  *observability.Logger
}

func NewNotifier(sender Sender, planned *postgres.PlannedStore,
	mothers *postgres.MotherStore, labs *postgres.LaboratoryStore,
	logger *observability.Logger) *Notifier {
	return &Notifier{sender: sender, planned: planned, mothers: mothers, labs: labs, logger: logger}
}

// NotifyUpcoming sends one message per laboratory visit scheduled in
// [from, to) to every registered manager. A failed send is logged and
// does not stop the run; the count of delivered messages is returned.
func (n *Notifier) NotifyUpcoming(ctx context.Context, from, to time.Time) (int, error) {
	visits, err := n.planned.DueBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to list planned visits: %w", err)
	}

	managers, err := n.labs.ManagersWithChat(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list managers: %w", err)
	}
	if len(managers) == 0 {
		n.logger.Warn("no laboratory managers with a registered chat")
		return 0, nil
	}

	sent := 0
	for _, visit := range visits {
		if visit.Plan != models.PlanLaboratory || visit.Finished {
			continue
		}

		text, err := n.visitMessage(ctx, visit)
		if err != nil {
			n.logger.WithError(err).WithField("planned_id", visit.ID).Warn("visit skipped")
			continue
		}

		for _, manager := range managers {
			chatID, err := strconv.ParseInt(manager.TelegramID, 10, 64)
			if err != nil {
				n.logger.WithError(err).WithField("manager_id", manager.ID).Warn("bad chat id")
				continue
			}
			if _, err := n.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
				n.logger.WithError(err).WithField("manager_id", manager.ID).Warn("send failed")
				continue
			}
			sent++
		}
	}
	return sent, nil
}

func (n *Notifier) visitMessage(ctx context.Context, visit *models.Planned) (string, error) {
	mother, err := n.mothers.GetByID(ctx, visit.MotherID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Laboratory visit: %s\n", mother.Name)
	fmt.Fprintf(&b, "Phone: %s\n", mother.Number)
	fmt.Fprintf(&b, "Date: %s", visit.ScheduledDate.Format("02.01.2006"))
	if !visit.ScheduledTime.IsZero() {
		fmt.Fprintf(&b, " %s", visit.ScheduledTime.Format("15:04"))
	}
	if visit.Note != "" {
		fmt.Fprintf(&b, "\nNote: %s", visit.Note)
	}
	return b.String(), nil
}
