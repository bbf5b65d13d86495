package perms

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kzcare/crm/pkg/models"
)

// ExistencePredicate reports whether any of the given object ids currently
// satisfies a panel's "actionable" condition (e.g. on the ban stage with an
// unresolved ban). Panels supply the predicate; the checker supplies the
// granted ids.
type ExistencePredicate func(ctx context.Context, objectIDs []int64) (bool, error)

// Checker answers whether a staff user may act on an object or see a list.
//
// Decision order for object-level checks: superuser, base model permission,
// record-level grant. List-level checks never short-circuit on superuser:
// the operational panels treat superusers as auditors, and list access is
// driven by whether actionable records exist for the user.
type Checker struct {
	store    *Store
	cache    *expirable.LRU[string, bool]
	cacheTTL time.Duration
}

// NewChecker creates a checker. A zero cacheTTL disables result caching.
func NewChecker(store *Store, cacheTTL time.Duration) *Checker {
	c := &Checker{store: store, cacheTTL: cacheTTL}
	if cacheTTL > 0 {
		c.cache = expirable.NewLRU[string, bool](4096, nil, cacheTTL)
	}
	return c
}

// CanObject decides an object-level check. It never returns an error:
// internal failures resolve to a denial (fail closed).
func (c *Checker) CanObject(ctx context.Context, user *models.User, action Action, model string, objectID int64) bool {
	res, err := c.ExplainObject(ctx, user, action, model, objectID)
	if err != nil {
		return false
	}
	return res.Allowed
}

// ExplainObject is CanObject with the matched rule and any internal error
// exposed, for logging and tests.
func (c *Checker) ExplainObject(ctx context.Context, user *models.User, action Action, model string, objectID int64) (CheckResult, error) {
	now := time.Now()
	if user == nil || !user.IsActive {
		return CheckResult{Reason: "inactive user", CheckedAt: now}, nil
	}
	if user.IsSuperuser {
		return CheckResult{Allowed: true, Reason: "superuser", CheckedAt: now}, nil
	}

	key := fmt.Sprintf("obj:%d:%s:%s:%d", user.ID, action, model, objectID)
	if c.cache != nil {
		if allowed, ok := c.cache.Get(key); ok {
			return CheckResult{Allowed: allowed, Reason: "cached result", CheckedAt: now}, nil
		}
	}

	base, err := c.store.HasModelPerm(ctx, user.ID, BasePerm(action, model))
	if err != nil {
		return CheckResult{CheckedAt: now}, err
	}
	if base {
		c.put(key, true)
		return CheckResult{Allowed: true, Reason: "base model permission", CheckedAt: now}, nil
	}

	cn := Codename{Stage: user.Stage, Model: model, Username: user.Username}
	granted, err := c.store.HasObjectGrant(ctx, user.ID, cn.String(), model, objectID)
	if err != nil {
		return CheckResult{CheckedAt: now}, err
	}
	if granted {
		c.put(key, true)
		return CheckResult{Allowed: true, Reason: "record-level grant " + cn.String(), CheckedAt: now}, nil
	}

	c.put(key, false)
	return CheckResult{Reason: "no matching permission", CheckedAt: now}, nil
}

// CanList decides a list-level check for a panel. The predicate defines
// which of the user's granted objects count as actionable; list access is
// granted exactly when at least one exists, so the user can navigate to
// act on it. Superusers get no shortcut here.
func (c *Checker) CanList(ctx context.Context, user *models.User, action Action, model string, predicate ExistencePredicate) bool {
	res, err := c.ExplainList(ctx, user, action, model, predicate)
	if err != nil {
		return false
	}
	return res.Allowed
}

// ExplainList is CanList with the matched rule exposed. List results are
// not cached: the actionable set changes with every stage transition.
func (c *Checker) ExplainList(ctx context.Context, user *models.User, action Action, model string, predicate ExistencePredicate) (CheckResult, error) {
	now := time.Now()
	if user == nil || !user.IsActive {
		return CheckResult{Reason: "inactive user", CheckedAt: now}, nil
	}

	base, err := c.store.HasModelPerm(ctx, user.ID, BasePerm(action, model))
	if err != nil {
		return CheckResult{CheckedAt: now}, err
	}
	if base {
		return CheckResult{Allowed: true, Reason: "base model permission", CheckedAt: now}, nil
	}

	if predicate == nil {
		return CheckResult{Reason: "no actionable predicate", CheckedAt: now}, nil
	}

	ids, err := c.store.GrantedObjectIDs(ctx, user.ID, model)
	if err != nil {
		return CheckResult{CheckedAt: now}, err
	}
	if len(ids) == 0 {
		return CheckResult{Reason: "no granted objects", CheckedAt: now}, nil
	}

	exists, err := predicate(ctx, ids)
	if err != nil {
		return CheckResult{CheckedAt: now}, err
	}
	if exists {
		return CheckResult{Allowed: true, Reason: "actionable granted object exists", CheckedAt: now}, nil
	}
	return CheckResult{Reason: "no actionable granted object", CheckedAt: now}, nil
}

// InvalidateUser drops all cached decisions for a user. Called after a
// grant or stage change so the next check sees fresh state.
func (c *Checker) InvalidateUser(userID int64) {
	if c.cache == nil {
		return
	}
	prefix := fmt.Sprintf("obj:%d:", userID)
	for _, key := range c.cache.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.cache.Remove(key)
		}
	}
}

func (c *Checker) put(key string, allowed bool) {
	if c.cache != nil {
		c.cache.Add(key, allowed)
	}
}
