package gate

// Grant is the view/edit/delete triple a role holds for one screen.
type Grant struct {
	CanView   bool `json:"canView"`
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
}

// FullGrant allows every action. Master roles resolve to it on any screen.
func FullGrant() Grant {
	return Grant{CanView: true, CanEdit: true, CanDelete: true}
}

// Allows reports whether the grant covers action. Unknown actions are denied.
func (g Grant) Allows(action Action) bool {
	switch action {
	case ActionView:
		return g.CanView
	case ActionEdit:
		return g.CanEdit
	case ActionDelete:
		return g.CanDelete
	}
	return false
}

// Empty reports whether the grant allows nothing.
func (g Grant) Empty() bool {
	return !g.CanView && !g.CanEdit && !g.CanDelete
}
