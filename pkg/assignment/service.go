package assignment

import (
	"context"
	"fmt"

	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/perms"
)

// UserSource lists the staff pool for a stage. Satisfied by the storage
// layer's user store.
type UserSource interface {
	ActiveStaffAtStage(ctx context.Context, stage models.StageName) ([]models.User, error)
}

// Service grants a record-level permission on a target object to a staff
// user eligible for a stage.
type Service struct {
	perms    *perms.Store
	users    UserSource
	selector Selector
}

// NewService creates an assignment service. The perms store may be bound
// to a transaction so the grant joins the caller's atomic write.
func NewService(permStore *perms.Store, users UserSource, selector Selector) *Service {
	return &Service{perms: permStore, users: users, selector: selector}
}

// Assign picks a manager for the object at the given stage and grants
// them the record-level permission. When explicit is non-nil and
// classified at the requested stage, it is chosen directly; an explicit
// user at any other stage is ignored and the selection path runs instead.
// Returns the chosen user.
func (s *Service) Assign(ctx context.Context, objectType string, objectID int64, stage models.StageName, explicit *models.User) (*models.User, error) {
	chosen := explicit
	if chosen == nil || chosen.Stage != stage {
		candidates, err := s.users.ActiveStaffAtStage(ctx, stage)
		if err != nil {
			return nil, fmt.Errorf("failed to list users at stage %s: %w", stage, err)
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("stage %s: %w", stage, ErrNoEligibleUsers)
		}
		chosen, err = s.selector.Select(ctx, candidates)
		if err != nil {
			return nil, err
		}
	}

	cn := perms.Codename{Stage: stage, Model: objectType, Username: chosen.Username}
	perm, err := s.perms.EnsurePermission(ctx, cn)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Grant(ctx, perm.ID, chosen.ID, objectType, objectID); err != nil {
		return nil, err
	}
	return chosen, nil
}
