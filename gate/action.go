package gate

// Action describes the kind of operation a user wants to perform on a screen.
type Action string

const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// ParseAction maps a raw string to a known Action.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionView, ActionEdit, ActionDelete:
		return a, true
	}
	return "", false
}
