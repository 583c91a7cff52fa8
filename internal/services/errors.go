package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/internal/tenant"
	"github.com/diewo77/go-backoffice/validation"
)

// Authorization and lookup failures.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
	// ErrNoTenant is returned by every tenant-scoped operation when the caller has no company.
	ErrNoTenant = tenant.ErrNoTenant
)

// ValidationError carries field-level violations (field -> code).
type ValidationError struct {
	Fields validation.Violations
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// invalid returns nil when v is empty, a *ValidationError otherwise.
func invalid(v validation.Violations) error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Fields: v}
}

func fieldError(field, code string) error {
	return &ValidationError{Fields: validation.Violations{field: code}}
}

// ConflictError is a uniqueness or reserved-name violation on Field.
type ConflictError struct {
	Field string
	Code  string
}

func (e *ConflictError) Error() string { return e.Code }

// Referential error codes and their messages.
const (
	CodeRoleInUse       = "role_in_use"
	CodeCompanyHasUsers = "company_has_users"
	CodeCompanyHasData  = "company_has_data"
	CodeAccountInUse    = "account_in_use"
	CodeCategoryInUse   = "category_in_use"
	CodeContactInUse    = "contact_in_use"
)

var referentialMessages = map[string]string{
	CodeRoleInUse:       "%d user(s) assigned",
	CodeCompanyHasUsers: "%d user(s) associated.",
	CodeCompanyHasData:  "%d record(s) linked",
	CodeAccountInUse:    "%d transaction(s) linked",
	CodeCategoryInUse:   "%d transaction(s) linked",
	CodeContactInUse:    "%d transaction(s) linked",
}

// ReferentialError is a delete blocked by Count dependent rows.
type ReferentialError struct {
	Code  string
	Count int64
}

func (e *ReferentialError) Error() string {
	if f, ok := referentialMessages[e.Code]; ok {
		return fmt.Sprintf(f, e.Count)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.Count)
}

// Error classes reported by Classify.
const (
	ClassOK            = "ok"
	ClassValidation    = "validation"
	ClassAuthorization = "authorization"
	ClassConflict      = "conflict"
	ClassReferential   = "referential"
	ClassNotFound      = "not_found"
	ClassUnexpected    = "unexpected"
)

// Classify maps err onto the error taxonomy.
func Classify(err error) string {
	var (
		ve *ValidationError
		ce *ConflictError
		re *ReferentialError
	)
	switch {
	case err == nil:
		return ClassOK
	case errors.As(err, &ve):
		return ClassValidation
	case errors.Is(err, ErrNoTenant), errors.Is(err, ErrForbidden):
		return ClassAuthorization
	case errors.As(err, &ce):
		return ClassConflict
	case errors.As(err, &re):
		return ClassReferential
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	}
	return ClassUnexpected
}

// dbError maps gorm errors onto the taxonomy. A duplicate key becomes a
// conflict on field with code; other errors are wrapped with op.
func dbError(err error, op, field, code string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey) && field != "":
		return &ConflictError{Field: field, Code: code}
	}
	return fmt.Errorf("%s: %w", op, err)
}
