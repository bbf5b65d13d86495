package adminview

import (
	"context"

	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/perms"
	"github.com/kzcare/crm/pkg/pipeline"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

var motherFields = []string{
	"name", "number", "program", "residence", "height_and_weight",
	"bad_habits", "caesarean", "children_age", "age", "citizenship",
	"blood", "maried",
}

// MotherPanel is the primary-stage work surface.
type MotherPanel struct {
	mothers *postgres.MotherStore
	checker *perms.Checker
	store   *perms.Store
}

func NewMotherPanel(mothers *postgres.MotherStore, checker *perms.Checker, store *perms.Store) *MotherPanel {
	return &MotherPanel{mothers: mothers, checker: checker, store: store}
}

// Fields returns the form fields for the given view mode.
func (p *MotherPanel) Fields(mode ViewMode) []string {
	switch mode {
	case ViewModeAdd:
		return motherFields
	case ViewModeFilteredByDate:
		return append([]string{"scheduled_date"}, motherFields...)
	case ViewModeFilteredByDateTime:
		return append([]string{"scheduled_date", "scheduled_time"}, motherFields...)
	default:
		return append(append([]string{}, motherFields...), "created_at")
	}
}

// ReadonlyFields returns which of the form fields cannot be edited.
func (p *MotherPanel) ReadonlyFields(mode ViewMode) []string {
	if mode == ViewModeReadOnly {
		return p.Fields(mode)
	}
	return []string{"created_at"}
}

// ModuleAllowed decides whether the panel appears in navigation:
// only when at least one primary-stage mother is reachable by the
// user's grants.
func (p *MotherPanel) ModuleAllowed(ctx context.Context, user *models.User) bool {
	return p.checker.CanList(ctx, user, perms.ActionView, perms.ModelMother, p.actionable)
}

// Queryset returns the primary-stage mothers the user may work with.
// A base model permission opens the full stage list; otherwise only
// granted records show.
func (p *MotherPanel) Queryset(ctx context.Context, user *models.User) ([]*models.Mother, error) {
	if user == nil || !user.IsActive {
		return nil, nil
	}

	base, err := p.store.HasModelPerm(ctx, user.ID, perms.BasePerm(perms.ActionView, perms.ModelMother))
	if err != nil {
		return nil, err
	}
	if base {
		return p.mothers.ListAtStage(ctx, models.StagePrimary)
	}

	granted, err := p.store.GrantedObjectIDs(ctx, user.ID, perms.ModelMother)
	if err != nil {
		return nil, err
	}
	ids, err := p.mothers.IDsAtStage(ctx, models.StagePrimary, granted)
	if err != nil {
		return nil, err
	}
	return p.mothers.ListByIDs(ctx, ids)
}

func (p *MotherPanel) actionable(ctx context.Context, objectIDs []int64) (bool, error) {
	ids, err := p.mothers.IDsAtStage(ctx, models.StagePrimary, objectIDs)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// BanAddPanel is the form that places a mother on the ban stage. It is
// deliberately absent from module navigation for every user, superusers
// included; bans are opened from the mother's record, never browsed.
type BanAddPanel struct {
	checker *perms.Checker
}

func NewBanAddPanel(checker *perms.Checker) *BanAddPanel {
	return &BanAddPanel{checker: checker}
}

// ModuleAllowed always denies; the panel never appears in navigation.
func (p *BanAddPanel) ModuleAllowed(context.Context, *models.User) bool {
	return false
}

// CanAdd decides whether the user may open a ban on the given mother.
func (p *BanAddPanel) CanAdd(ctx context.Context, user *models.User, motherID int64) bool {
	return p.checker.CanObject(ctx, user, perms.ActionAdd, perms.ModelMother, motherID)
}

// Fields for the ban form; anything but the add mode is read-only.
func (p *BanAddPanel) Fields(mode ViewMode) []string {
	if mode == ViewModeAdd {
		return []string{"mother", "comment"}
	}
	return []string{"mother", "comment", "created_at", "banned"}
}

// BanListPanel is the ban-stage work surface: unresolved bans whose
// mother currently sits on the ban stage, with the out-from-ban action.
type BanListPanel struct {
	bans     *postgres.BanStore
	checker  *perms.Checker
	store    *perms.Store
	pipeline *pipeline.Service
}

func NewBanListPanel(bans *postgres.BanStore, checker *perms.Checker,
	store *perms.Store, pipe *pipeline.Service) *BanListPanel {
	return &BanListPanel{bans: bans, checker: checker, store: store, pipeline: pipe}
}

// ModuleAllowed grants navigation only while an actionable ban exists
// among the user's grants.
func (p *BanListPanel) ModuleAllowed(ctx context.Context, user *models.User) bool {
	return p.checker.CanList(ctx, user, perms.ActionView, perms.ModelBan, p.actionable)
}

// Queryset returns the unresolved bans the user may act on.
func (p *BanListPanel) Queryset(ctx context.Context, user *models.User) ([]*models.Ban, error) {
	if user == nil || !user.IsActive {
		return nil, nil
	}

	base, err := p.store.HasModelPerm(ctx, user.ID, perms.BasePerm(perms.ActionView, perms.ModelBan))
	if err != nil {
		return nil, err
	}
	if base {
		return p.bans.ListUnresolved(ctx)
	}

	granted, err := p.store.GrantedObjectIDs(ctx, user.ID, perms.ModelBan)
	if err != nil {
		return nil, err
	}
	return p.bans.ListActionableByIDs(ctx, granted)
}

// OutFromBan resolves a ban and returns the mother to the primary
// stage. The acting user needs a change grant on the ban record.
func (p *BanListPanel) OutFromBan(ctx context.Context, user *models.User, banID int64) (*models.User, error) {
	if !p.checker.CanObject(ctx, user, perms.ActionChange, perms.ModelBan, banID) {
		return nil, perms.ErrDenied
	}

	ban, err := p.bans.GetByID(ctx, banID)
	if err != nil {
		return nil, err
	}
	return p.pipeline.OutFromBan(ctx, ban.MotherID, nil)
}

func (p *BanListPanel) actionable(ctx context.Context, objectIDs []int64) (bool, error) {
	return p.bans.AnyActionable(ctx, objectIDs)
}

// FirstVisitPanel is the first-visit work surface.
type FirstVisitPanel struct {
	mothers *postgres.MotherStore
	planned *postgres.PlannedStore
	checker *perms.Checker
	store   *perms.Store
}

func NewFirstVisitPanel(mothers *postgres.MotherStore, planned *postgres.PlannedStore,
	checker *perms.Checker, store *perms.Store) *FirstVisitPanel {
	return &FirstVisitPanel{mothers: mothers, planned: planned, checker: checker, store: store}
}

func (p *FirstVisitPanel) ModuleAllowed(ctx context.Context, user *models.User) bool {
	return p.checker.CanList(ctx, user, perms.ActionView, perms.ModelMother, p.actionable)
}

// Queryset returns the first-visit mothers reachable by the user.
func (p *FirstVisitPanel) Queryset(ctx context.Context, user *models.User) ([]*models.Mother, error) {
	if user == nil || !user.IsActive {
		return nil, nil
	}

	base, err := p.store.HasModelPerm(ctx, user.ID, perms.BasePerm(perms.ActionView, perms.ModelMother))
	if err != nil {
		return nil, err
	}
	if base {
		return p.mothers.ListAtStage(ctx, models.StageFirstVisit)
	}

	granted, err := p.store.GrantedObjectIDs(ctx, user.ID, perms.ModelMother)
	if err != nil {
		return nil, err
	}
	ids, err := p.mothers.IDsAtStage(ctx, models.StageFirstVisit, granted)
	if err != nil {
		return nil, err
	}
	return p.mothers.ListByIDs(ctx, ids)
}

// SplitByPlan partitions the reachable first-visit mothers into those
// with an open laboratory plan and those without one. The two halves
// back the panel's scheduled and unscheduled tabs.
func (p *FirstVisitPanel) SplitByPlan(ctx context.Context, user *models.User) (withPlan, withoutPlan []*models.Mother, err error) {
	mothers, err := p.Queryset(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	openIDs, err := p.planned.OpenMotherIDs(ctx, models.PlanLaboratory)
	if err != nil {
		return nil, nil, err
	}
	open := make(map[int64]bool, len(openIDs))
	for _, id := range openIDs {
		open[id] = true
	}
	for _, m := range mothers {
		if open[m.ID] {
			withPlan = append(withPlan, m)
		} else {
			withoutPlan = append(withoutPlan, m)
		}
	}
	return withPlan, withoutPlan, nil
}

// Fields of the first-visit form: demographics plus the paperwork and
// planning blocks collected during the visit.
func (p *FirstVisitPanel) Fields(mode ViewMode) []string {
	switch mode {
	case ViewModeFilteredByDate:
		return []string{"scheduled_date", "name", "number", "plan", "note"}
	case ViewModeFilteredByDateTime:
		return []string{"scheduled_date", "scheduled_time", "name", "number", "plan", "note"}
	default:
		return append(append([]string{}, motherFields...), "main_docs", "acquire_docs", "additional_docs")
	}
}

func (p *FirstVisitPanel) actionable(ctx context.Context, objectIDs []int64) (bool, error) {
	ids, err := p.mothers.IDsAtStage(ctx, models.StageFirstVisit, objectIDs)
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// DocumentPanel resolves the document form for a mother.
type DocumentPanel struct {
	documents *postgres.DocumentStore
	checker   *perms.Checker
}

func NewDocumentPanel(documents *postgres.DocumentStore, checker *perms.Checker) *DocumentPanel {
	return &DocumentPanel{documents: documents, checker: checker}
}

func (p *DocumentPanel) Fields(mode ViewMode) []string {
	if mode == ViewModeAdd {
		return []string{"mother", "kind", "name", "note", "file"}
	}
	return []string{"mother", "kind", "name", "note", "object_key", "created_at"}
}

// CanView checks the mother-level grant; documents inherit access from
// their mother.
func (p *DocumentPanel) CanView(ctx context.Context, user *models.User, motherID int64) bool {
	return p.checker.CanObject(ctx, user, perms.ActionView, perms.ModelMother, motherID)
}

// Queryset returns the documents of one mother, provided the user may
// see her.
func (p *DocumentPanel) Queryset(ctx context.Context, user *models.User, motherID int64, kind models.DocumentKind) ([]*models.Document, error) {
	if !p.CanView(ctx, user, motherID) {
		return nil, perms.ErrDenied
	}
	return p.documents.ListForMother(ctx, motherID, kind)
}
