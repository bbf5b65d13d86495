package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kzcare/crm/pkg/assignment"
	"github.com/kzcare/crm/pkg/async"
	"github.com/kzcare/crm/pkg/audit"
	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/observability"
	"github.com/kzcare/crm/pkg/perms"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

var (
	// ErrWrongStage is returned when a transition is requested from a
	// stage it does not apply to.
	ErrWrongStage = errors.New("mother is not at the required stage")

	// ErrNoOpenBan is returned by OutFromBan when the mother carries no
	// unresolved ban.
	ErrNoOpenBan = errors.New("no unresolved ban")
)

// Invalidator drops cached reads after a write. Nil-safe via the
// service; the Redis cache satisfies it.
type Invalidator interface {
	InvalidateMother(ctx context.Context, id int64) error
	InvalidateUser(ctx context.Context, userID int64) error
}

// DecisionCache is the in-process permission decision cache flushed
// after a transition grants a manager access, so a cached denial does
// not outlive the grant. *perms.Checker satisfies it; nil disables the
// flush.
type DecisionCache interface {
	InvalidateUser(userID int64)
}

// Service executes stage transitions.
type Service struct {
	db        *sql.DB
	perms     *perms.Store
	users     *postgres.UserStore
	selector  assignment.Selector
	audit     audit.Logger
	logger    *observability.Logger
	cache     Invalidator
	decisions DecisionCache
}

// NewService wires a pipeline service. audit may be a NopLogger; cache
// may be nil when no Redis is configured, and decisions nil when no
// checker shares the process.
func NewService(db *sql.DB, permStore *perms.Store, users *postgres.UserStore,
	selector assignment.Selector, auditLogger audit.Logger,
	logger *observability.Logger, cache Invalidator, decisions DecisionCache) *Service {
	if auditLogger == nil {
		auditLogger = audit.NewNopLogger()
	}
	return &Service{
		db:        db,
		perms:     permStore,
		users:     users,
		selector:  selector,
		audit:     auditLogger,
		logger:    logger,
		cache:     cache,
		decisions: decisions,
	}
}

// CreateMother registers a new mother: the record itself, an open
// primary stage, a "recently created" state and a manager assignment on
// the primary stage. An empty manager pool is tolerated; the mother
// stays unassigned until a manager joins the stage.
func (s *Service) CreateMother(ctx context.Context, m *models.Mother, explicit *models.User) (*models.User, error) {
	var manager *models.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := postgres.NewMotherStore(tx).Create(ctx, m); err != nil {
			return err
		}
		if _, err := postgres.NewStageStore(tx).Create(ctx, m.ID, models.StagePrimary); err != nil {
			return err
		}
		state := &models.State{
			MotherID:      m.ID,
			Condition:     models.ConditionCreated,
			ScheduledDate: time.Now().UTC(),
		}
		if err := postgres.NewStateStore(tx).Create(ctx, state); err != nil {
			return err
		}

		var err error
		manager, err = s.assign(ctx, tx, perms.ModelMother, m.ID, models.StagePrimary, explicit)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, &audit.Event{
		EventType:    audit.EventTypeMotherCreate,
		Status:       audit.EventStatusSuccess,
		ResourceType: audit.ResourceTypeMother,
		ResourceID:   fmt.Sprintf("%d", m.ID),
	})
	s.recordGrant(ctx, manager, models.StagePrimary, perms.ModelMother, m.ID)
	s.invalidate(ctx, m.ID, manager)
	return manager, nil
}

// MoveToBan finishes the current stage, opens a ban stage and an
// unresolved ban record, and assigns a ban-stage manager to the ban.
func (s *Service) MoveToBan(ctx context.Context, motherID int64, comment string, explicit *models.User) (*models.Ban, *models.User, error) {
	var ban *models.Ban
	var manager *models.User
	var fromStage models.StageName
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stages := postgres.NewStageStore(tx)
		current, err := stages.Current(ctx, motherID)
		if err != nil {
			return err
		}
		if current.Stage == models.StageBan {
			return ErrWrongStage
		}
		fromStage = current.Stage

		if _, err := stages.FinishCurrent(ctx, motherID); err != nil {
			return err
		}
		if _, err := stages.Create(ctx, motherID, models.StageBan); err != nil {
			return err
		}

		ban, err = postgres.NewBanStore(tx).Create(ctx, motherID, comment)
		if err != nil {
			return err
		}

		manager, err = s.assign(ctx, tx, perms.ModelBan, ban.ID, models.StageBan, explicit)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.recordTransition(ctx, motherID, manager, string(fromStage), string(models.StageBan))
	s.recordEvent(ctx, &audit.Event{
		EventType:    audit.EventTypeBanOpen,
		Status:       audit.EventStatusSuccess,
		ResourceType: audit.ResourceTypeBan,
		ResourceID:   fmt.Sprintf("%d", ban.ID),
	})
	s.recordGrant(ctx, manager, models.StageBan, perms.ModelBan, ban.ID)
	s.invalidate(ctx, motherID, manager)
	return ban, manager, nil
}

// OutFromBan resolves the open ban and returns the mother to the
// primary stage: the ban row keeps its history with banned set, the ban
// stage record is finished, a fresh primary stage record is opened and
// a primary-stage manager takes over.
func (s *Service) OutFromBan(ctx context.Context, motherID int64, explicit *models.User) (*models.User, error) {
	var manager *models.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stages := postgres.NewStageStore(tx)
		current, err := stages.Current(ctx, motherID)
		if err != nil {
			return err
		}
		if current.Stage != models.StageBan {
			return ErrWrongStage
		}

		bans := postgres.NewBanStore(tx)
		ban, err := bans.Unresolved(ctx, motherID)
		if errors.Is(err, postgres.ErrNotFound) {
			return ErrNoOpenBan
		}
		if err != nil {
			return err
		}
		if err := bans.Resolve(ctx, ban.ID); err != nil {
			return err
		}

		if _, err := stages.FinishCurrent(ctx, motherID); err != nil {
			return err
		}
		if _, err := stages.Create(ctx, motherID, models.StagePrimary); err != nil {
			return err
		}

		manager, err = s.assign(ctx, tx, perms.ModelMother, motherID, models.StagePrimary, explicit)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, motherID, manager, string(models.StageBan), string(models.StagePrimary))
	s.recordEvent(ctx, &audit.Event{
		EventType:    audit.EventTypeBanResolve,
		Status:       audit.EventStatusSuccess,
		ResourceType: audit.ResourceTypeMother,
		ResourceID:   fmt.Sprintf("%d", motherID),
	})
	s.recordGrant(ctx, manager, models.StagePrimary, perms.ModelMother, motherID)
	s.invalidate(ctx, motherID, manager)
	return manager, nil
}

// MoveToFirstVisit advances a primary-stage mother to the first visit.
func (s *Service) MoveToFirstVisit(ctx context.Context, motherID int64, explicit *models.User) (*models.User, error) {
	var manager *models.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stages := postgres.NewStageStore(tx)
		current, err := stages.Current(ctx, motherID)
		if err != nil {
			return err
		}
		if current.Stage != models.StagePrimary {
			return ErrWrongStage
		}

		if _, err := stages.FinishCurrent(ctx, motherID); err != nil {
			return err
		}
		if _, err := stages.Create(ctx, motherID, models.StageFirstVisit); err != nil {
			return err
		}

		manager, err = s.assign(ctx, tx, perms.ModelMother, motherID, models.StageFirstVisit, explicit)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, motherID, manager, string(models.StagePrimary), string(models.StageFirstVisit))
	s.recordGrant(ctx, manager, models.StageFirstVisit, perms.ModelMother, motherID)
	s.invalidate(ctx, motherID, manager)
	return manager, nil
}

// MoveToTrash parks a mother on the trash stage. Trash has no operators,
// so no manager is assigned.
func (s *Service) MoveToTrash(ctx context.Context, motherID int64) error {
	var fromStage models.StageName
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stages := postgres.NewStageStore(tx)
		current, err := stages.Current(ctx, motherID)
		if err != nil {
			return err
		}
		if current.Stage == models.StageTrash {
			return ErrWrongStage
		}
		fromStage = current.Stage

		if _, err := stages.FinishCurrent(ctx, motherID); err != nil {
			return err
		}
		_, err = stages.Create(ctx, motherID, models.StageTrash)
		return err
	})
	if err != nil {
		return err
	}

	s.recordTransition(ctx, motherID, nil, string(fromStage), string(models.StageTrash))
	s.invalidate(ctx, motherID, nil)
	return nil
}

// ReturnFromTrash brings a trashed mother back to the primary stage.
func (s *Service) ReturnFromTrash(ctx context.Context, motherID int64, explicit *models.User) (*models.User, error) {
	var manager *models.User
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stages := postgres.NewStageStore(tx)
		current, err := stages.Current(ctx, motherID)
		if err != nil {
			return err
		}
		if current.Stage != models.StageTrash {
			return ErrWrongStage
		}

		if _, err := stages.FinishCurrent(ctx, motherID); err != nil {
			return err
		}
		if _, err := stages.Create(ctx, motherID, models.StagePrimary); err != nil {
			return err
		}

		manager, err = s.assign(ctx, tx, perms.ModelMother, motherID, models.StagePrimary, explicit)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, motherID, manager, string(models.StageTrash), string(models.StagePrimary))
	s.recordGrant(ctx, manager, models.StagePrimary, perms.ModelMother, motherID)
	s.invalidate(ctx, motherID, manager)
	return manager, nil
}

// DeleteFromTrash removes a trashed mother permanently.
func (s *Service) DeleteFromTrash(ctx context.Context, motherID int64) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := postgres.NewStageStore(tx).Current(ctx, motherID)
		if err != nil {
			return err
		}
		if current.Stage != models.StageTrash {
			return ErrWrongStage
		}
		return postgres.NewMotherStore(tx).Delete(ctx, motherID)
	})
	if err != nil {
		return err
	}

	s.recordEvent(ctx, &audit.Event{
		EventType:    audit.EventTypeMotherDelete,
		Status:       audit.EventStatusSuccess,
		ResourceType: audit.ResourceTypeMother,
		ResourceID:   fmt.Sprintf("%d", motherID),
	})
	s.invalidate(ctx, motherID, nil)
	return nil
}

// Revoke hides a mother from the operational panels.
func (s *Service) Revoke(ctx context.Context, motherID int64, description string) error {
	err := postgres.NewCommentStore(s.db).Create(ctx, &models.Comment{
		MotherID:    motherID,
		Description: description,
		Revoked:     true,
	})
	if err != nil {
		return err
	}

	s.recordEvent(ctx, &audit.Event{
		EventType:    audit.EventTypeMotherRevoke,
		Status:       audit.EventStatusSuccess,
		ResourceType: audit.ResourceTypeMother,
		ResourceID:   fmt.Sprintf("%d", motherID),
		Message:      description,
	})
	s.invalidate(ctx, motherID, nil)
	return nil
}

// Return clears every revocation mark so the mother reappears.
func (s *Service) Return(ctx context.Context, motherID int64) error {
	if err := postgres.NewCommentStore(s.db).SetRevoked(ctx, motherID, false); err != nil {
		return err
	}

	s.recordEvent(ctx, &audit.Event{
		EventType:    audit.EventTypeMotherReturn,
		Status:       audit.EventStatusSuccess,
		ResourceType: audit.ResourceTypeMother,
		ResourceID:   fmt.Sprintf("%d", motherID),
	})
	s.invalidate(ctx, motherID, nil)
	return nil
}

// assign runs the manager assignment inside the transition transaction.
// An empty candidate pool leaves the record unassigned rather than
// failing the transition.
func (s *Service) assign(ctx context.Context, tx *sql.Tx, objectType string, objectID int64,
	stage models.StageName, explicit *models.User) (*models.User, error) {
	svc := assignment.NewService(s.perms.WithTx(tx), s.users.WithTx(tx), s.selector)
	manager, err := svc.Assign(ctx, objectType, objectID, stage, explicit)
	if errors.Is(err, assignment.ErrNoEligibleUsers) {
		if s.logger != nil {
			s.logger.WithFields(map[string]interface{}{
				"object_type": objectType,
				"object_id":   objectID,
				"stage":       string(stage),
			}).Warn("no eligible manager at stage, record left unassigned")
		}
		return nil, nil
	}
	return manager, err
}

func (s *Service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && s.logger != nil {
			s.logger.WithError(rbErr).Error("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Audit and cache writes happen after commit and never fail a
// transition; a lost audit row is logged and accepted.
func (s *Service) recordEvent(ctx context.Context, event *audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("audit write failed")
	}
}

func (s *Service) recordGrant(ctx context.Context, manager *models.User, stage models.StageName,
	objectType string, objectID int64) {
	if manager == nil {
		return
	}
	codename := perms.Codename{Stage: stage, Model: objectType, Username: manager.Username}.String()
	resource := audit.ResourceTypeMother
	if objectType == perms.ModelBan {
		resource = audit.ResourceTypeBan
	}
	if err := audit.LogGrant(ctx, s.audit, manager.ID, codename, resource, objectID); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("audit write failed")
	}
}

func (s *Service) recordTransition(ctx context.Context, motherID int64, manager *models.User, from, to string) {
	var userID *int64
	if manager != nil {
		userID = &manager.ID
	}
	if err := audit.LogTransition(ctx, s.audit, userID, motherID, from, to); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("audit write failed")
	}
}

// invalidate drops cached reads after a committed transition. It runs
// off the request path; a stale entry expires on its own TTL anyway.
func (s *Service) invalidate(ctx context.Context, motherID int64, manager *models.User) {
	var managerID int64
	if manager != nil {
		managerID = manager.ID
	}
	if s.decisions != nil && managerID != 0 {
		s.decisions.InvalidateUser(managerID)
	}
	if s.cache == nil {
		return
	}
	async.SafeGo(context.WithoutCancel(ctx), 5*time.Second, "cache invalidation", func(ctx context.Context) error {
		if err := s.cache.InvalidateMother(ctx, motherID); err != nil && s.logger != nil {
			s.logger.WithError(err).Warn("cache invalidation failed")
		}
		if managerID != 0 {
			if err := s.cache.InvalidateUser(ctx, managerID); err != nil && s.logger != nil {
				s.logger.WithError(err).Warn("cache invalidation failed")
			}
		}
		return nil
	})
}
