package mailsync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kzcare/crm/pkg/audit"
	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/pipeline"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

// MessageSource yields the messages of one mailbox day. Session
// implements it; tests substitute a fake.
type MessageSource interface {
	SearchDay(day time.Time) ([]uint32, error)
	FetchMessage(seqNum uint32) (messageID, body string, err error)
}

// Ingestor turns questionnaire mails into pipeline records.
type Ingestor struct {
	mothers  *postgres.MotherStore
	pipeline *pipeline.Service
	audit    audit.Logger
	logger   *observability.Logger
}

func NewIngestor(mothers *postgres.MotherStore, svc *pipeline.Service,
	auditLogger audit.Logger, logger *observability.Logger) *Ingestor {
	if auditLogger == nil {
		auditLogger = audit.NewNopLogger()
	}
	return &Ingestor{mothers: mothers, pipeline: svc, audit: auditLogger, logger: logger}
}

// Result summarizes one ingestion run.
type Result struct {
	Seen     int
	Created  int
	Skipped  int
	Failures int
}

// IngestDay fetches every message of the given day from src and creates
// a mother record for each one not seen before. A message that fails to
// parse or store is logged and skipped; the run continues. The caller
// owns src and is responsible for logging out.
func (in *Ingestor) IngestDay(ctx context.Context, src MessageSource, day time.Time) (Result, error) {
	var res Result

	ids, err := src.SearchDay(day)
	if err != nil {
		return res, fmt.Errorf("failed to list messages: %w", err)
	}
	res.Seen = len(ids)

	for _, seqNum := range ids {
		if err := in.ingestOne(ctx, src, seqNum, &res); err != nil {
			res.Failures++
			in.logger.WithError(err).WithField("seq_num", seqNum).Warn("message skipped")
		}
	}

	in.logger.WithFields(map[string]interface{}{
		"day":     day.Format("2006-01-02"),
		"seen":    res.Seen,
		"created": res.Created,
		"skipped": res.Skipped,
	}).Info("mail ingestion finished")
	return res, nil
}

func (in *Ingestor) ingestOne(ctx context.Context, src MessageSource, seqNum uint32, res *Result) error {
	messageID, body, err := src.FetchMessage(seqNum)
	if err != nil {
		return err
	}
	if messageID == "" {
		return fmt.Errorf("message %d has no message id", seqNum)
	}

	seen, err := in.mothers.ExternalIDExists(ctx, messageID)
	if err != nil {
		return err
	}
	if seen {
		res.Skipped++
		return nil
	}

	fields := ParseQuestionnaire(body)
	mother := MotherFromFields(fields)
	if mother.Name == "" && mother.Number == "" {
		return fmt.Errorf("message %s carries no questionnaire", messageID)
	}
	mother.ExternalID = messageID

	if _, err := in.pipeline.CreateMother(ctx, mother, nil); err != nil {
		return fmt.Errorf("failed to create record for %s: %w", messageID, err)
	}
	res.Created++

	in.recordIngest(ctx, mother, messageID)
	return nil
}

func (in *Ingestor) recordIngest(ctx context.Context, m *models.Mother, messageID string) {
	err := in.audit.Log(ctx, &audit.Event{
		Timestamp:    time.Now().UTC(),
		EventType:    audit.EventTypeMailIngest,
		Status:       audit.EventStatusSuccess,
		ResourceType: audit.ResourceTypeMessage,
		ResourceID:   messageID,
		Metadata:     map[string]string{"mother_id": strconv.FormatInt(m.ID, 10)},
	})
	if err != nil {
		in.logger.WithError(err).Warn("failed to write ingest audit event")
	}
}
