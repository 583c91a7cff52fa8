// Package screens is the static catalog of protected screens.
package screens

import (
	"sort"

	"github.com/google/uuid"
)

// namespace seeds the name-based screen ids so they never change between
// deployments.
var namespace = uuid.MustParse("6f1d3a52-8c0e-4c59-9b7e-2f4a1c9d7e10")

// Module names used to group screens in the permission editor.
const (
	ModuleDashboard = "dashboard"
	ModuleFinance   = "finance"
	ModuleRegistry  = "registry"
	ModuleAdmin     = "admin"
)

// Screen is one catalog entry.
type Screen struct {
	ID     uuid.UUID `json:"id"`
	Path   string    `json:"path"`
	Name   string    `json:"name"`
	Module string    `json:"module"`
}

// Paths of every protected screen.
const (
	PathDashboard    = "/dashboard"
	PathAccounts     = "/accounts"
	PathTransactions = "/transactions"
	PathPayables     = "/transactions/payables"
	PathReceivables  = "/transactions/receivables"
	PathRecurring    = "/recurring"
	PathCategories   = "/categories"
	PathContacts     = "/contacts"
	PathCompanies    = "/admin/companies"
	PathUsers        = "/admin/users"
	PathRoles        = "/admin/roles"
)

func def(path, name, module string) Screen {
	return Screen{ID: uuid.NewSHA1(namespace, []byte(path)), Path: path, Name: name, Module: module}
}

var catalog = []Screen{
	def(PathDashboard, "screen.dashboard", ModuleDashboard),
	def(PathAccounts, "screen.accounts", ModuleFinance),
	def(PathTransactions, "screen.transactions", ModuleFinance),
	def(PathPayables, "screen.payables", ModuleFinance),
	def(PathReceivables, "screen.receivables", ModuleFinance),
	def(PathRecurring, "screen.recurring", ModuleFinance),
	def(PathCategories, "screen.categories", ModuleRegistry),
	def(PathContacts, "screen.contacts", ModuleRegistry),
	def(PathCompanies, "screen.companies", ModuleAdmin),
	def(PathUsers, "screen.users", ModuleAdmin),
	def(PathRoles, "screen.roles", ModuleAdmin),
}

var (
	byPath = map[string]Screen{}
	byID   = map[uuid.UUID]Screen{}
)

func init() {
	for _, s := range catalog {
		byPath[s.Path] = s
		byID[s.ID] = s
	}
}

// All returns a copy of the catalog in declaration order.
func All() []Screen {
	out := make([]Screen, len(catalog))
	copy(out, catalog)
	return out
}

// ByPath looks a screen up by its path.
func ByPath(path string) (Screen, bool) {
	s, ok := byPath[path]
	return s, ok
}

// ByID looks a screen up by its id.
func ByID(id uuid.UUID) (Screen, bool) {
	s, ok := byID[id]
	return s, ok
}

// ScreenID returns the id of the screen at path as a string.
// It lets the registry serve as a gate.Catalog.
func ScreenID(path string) (string, bool) {
	s, ok := byPath[path]
	if !ok {
		return "", false
	}
	return s.ID.String(), true
}

// Group is the screens of one module.
type Group struct {
	Module  string
	Screens []Screen
}

// Modules groups the catalog by module, modules sorted by name and screens
// kept in declaration order.
func Modules() []Group {
	idx := map[string]int{}
	var groups []Group
	for _, s := range catalog {
		i, ok := idx[s.Module]
		if !ok {
			i = len(groups)
			idx[s.Module] = i
			groups = append(groups, Group{Module: s.Module})
		}
		groups[i].Screens = append(groups[i].Screens, s)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Module < groups[b].Module })
	return groups
}
