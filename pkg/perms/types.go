package perms

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kzcare/crm/pkg/models"
)

// ErrDenied is returned by callers that surface a failed access check
// as an error instead of a boolean.
var ErrDenied = errors.New("permission denied")

// AppLabel prefixes base model-level permissions, e.g. "mothers.view_mother".
const AppLabel = "mothers"

// Action is an operation a staff user can perform on a model.
type Action string

const (
	ActionView   Action = "view"
	ActionAdd    Action = "add"
	ActionChange Action = "change"
	ActionDelete Action = "delete"
)

// Model names used in codenames and base permissions.
const (
	ModelMother   = "mother"
	ModelBan      = "ban"
	ModelState    = "state"
	ModelPlanned  = "planned"
	ModelDocument = "document"
)

// Codename is the structured key of a record-level permission. It replaces
// ad hoc string concatenation so that the grant path and the check path
// cannot drift apart: both render through String.
type Codename struct {
	Stage    models.StageName
	Model    string
	Username string
}

// String renders the canonical lowercase form "{stage}_{model}_{username}".
// The result is stable for equal inputs; it is the value persisted with a
// grant and compared on check.
func (c Codename) String() string {
	return strings.ToLower(fmt.Sprintf("%s_%s_%s", c.Stage, c.Model, c.Username))
}

// Label renders the human-readable permission name "{stage} {model} {username}".
func (c Codename) Label() string {
	return strings.ToLower(fmt.Sprintf("%s %s %s", c.Stage, c.Model, c.Username))
}

// ParseCodename splits a canonical codename back into its parts. Usernames
// may themselves contain underscores, so the stage and model are taken from
// the front and the remainder is the username.
func ParseCodename(s string) (Codename, error) {
	parts := strings.SplitN(s, "_", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Codename{}, fmt.Errorf("malformed codename %q", s)
	}
	// first_visit is the one stage containing an underscore
	if parts[0] == "first" && parts[1] == "visit" {
		i := strings.Index(parts[2], "_")
		if i <= 0 || i == len(parts[2])-1 {
			return Codename{}, fmt.Errorf("malformed codename %q", s)
		}
		return Codename{
			Stage:    models.StageFirstVisit,
			Model:    parts[2][:i],
			Username: parts[2][i+1:],
		}, nil
	}
	cn := Codename{Stage: models.StageName(parts[0]), Model: parts[1], Username: parts[2]}
	if !cn.Stage.Valid() {
		return Codename{}, fmt.Errorf("unknown stage in codename %q", s)
	}
	return cn, nil
}

// BasePerm renders the model-level permission string "{app}.{action}_{model}".
func BasePerm(action Action, model string) string {
	return fmt.Sprintf("%s.%s_%s", AppLabel, action, model)
}

// Permission is a persisted permission definition. Definitions are created
// lazily (get-or-create) the first time a codename is granted.
type Permission struct {
	ID       int64  `json:"id"`
	Codename string `json:"codename"`
	Name     string `json:"name"`
	Model    string `json:"model"`
}

// ObjectGrant ties a permission definition to one user and one object.
type ObjectGrant struct {
	ID           int64     `json:"id"`
	PermissionID int64     `json:"permission_id"`
	UserID       int64     `json:"user_id"`
	ObjectType   string    `json:"object_type"`
	ObjectID     int64     `json:"object_id"`
	GrantedAt    time.Time `json:"granted_at"`
}

// CheckResult carries the outcome of an access decision with its reason,
// mainly for logging and tests. Handlers only look at Allowed.
type CheckResult struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
