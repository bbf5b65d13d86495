package adminview

import "fmt"

// ViewMode selects which fields a panel form exposes. It replaces
// ad hoc query-string flags with one enumerated value that callers
// pass explicitly into field resolution.
type ViewMode int

const (
	// ViewModeAdd is the creation form.
	ViewModeAdd ViewMode = iota
	// ViewModeChange is the edit form for an existing record.
	ViewModeChange
	// ViewModeReadOnly renders every field without editing.
	ViewModeReadOnly
	// ViewModeFilteredByDate is the list narrowed to a scheduled date.
	ViewModeFilteredByDate
	// ViewModeFilteredByDateTime is the list narrowed to a scheduled
	// date and time.
	ViewModeFilteredByDateTime
)

var viewModeNames = map[ViewMode]string{
	ViewModeAdd:                "add",
	ViewModeChange:             "change",
	ViewModeReadOnly:           "readonly",
	ViewModeFilteredByDate:     "filtered_by_date",
	ViewModeFilteredByDateTime: "filtered_by_datetime",
}

func (m ViewMode) String() string {
	if name, ok := viewModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ViewMode(%d)", int(m))
}

// ParseViewMode maps the wire value back to a ViewMode. Unknown values
// fall back to the change form, the safest interactive default.
func ParseViewMode(s string) ViewMode {
	for mode, name := range viewModeNames {
		if name == s {
			return mode
		}
	}
	return ViewModeChange
}
