package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/diewo77/go-backoffice/internal/logging"
	"github.com/diewo77/go-backoffice/internal/services"
	"github.com/diewo77/go-backoffice/validation"
)

func TestResponder_ResultByClass(t *testing.T) {
	var logs bytes.Buffer
	rs := responder{log: logging.NewWithOutput(&logs, "debug", "json")}
	req := jsonRequest(t, http.MethodPost, "/accounts", nil)

	tests := []struct {
		name     string
		err      error
		status   int
		message  string
		field    string
		conflict string
	}{
		{"invalid body", errInvalidBody, http.StatusBadRequest, "Invalid form", "", ""},
		{"validation", &services.ValidationError{Fields: validation.Violations{"name": "invalid_number"}}, http.StatusBadRequest, "Please fix the highlighted fields", "name", ""},
		{"no tenant", fmt.Errorf("list: %w", services.ErrNoTenant), http.StatusForbidden, "User is not associated with a company", "", ""},
		{"forbidden", services.ErrForbidden, http.StatusForbidden, "Access denied", "", ""},
		{"conflict", &services.ConflictError{Field: "name", Code: "role_name_taken"}, http.StatusConflict, "A role with this name already exists", "", "name"},
		{"referential", &services.ReferentialError{Code: services.CodeRoleInUse, Count: 3}, http.StatusConflict, "3 user(s) assigned", "", ""},
		{"not found", services.ErrNotFound, http.StatusNotFound, "Not found", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := rs.result(req, tt.err)
			assert.Equal(t, tt.status, status)
			assert.False(t, res.Success)
			assert.Equal(t, tt.message, res.Message)
			if tt.field != "" {
				assert.NotEmpty(t, res.Errors[tt.field])
			}
			assert.Equal(t, tt.conflict, res.Field)
			if tt.conflict != "" {
				assert.Empty(t, res.Errors, "conflicts carry no field errors")
			}
		})
	}
	assert.Empty(t, logs.String(), "expected errors are not logged")
}

func TestResponder_ConflictHighlightsFieldInForm(t *testing.T) {
	rs := responder{log: logging.Discard()}
	req := formRequest(http.MethodPost, "/admin/roles", url.Values{})
	data := map[string]any{}

	rr := httptest.NewRecorder()
	rs.fail(rr, req, &services.ConflictError{Field: "name", Code: "role_name_taken"}, "missing/form.html", data)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, map[string]string{"name": "A role with this name already exists"}, data["Errors"])
}

func TestResponder_UnexpectedIsLoggedNotLeaked(t *testing.T) {
	var logs bytes.Buffer
	rs := responder{log: logging.NewWithOutput(&logs, "info", "json")}
	req := jsonRequest(t, http.MethodDelete, "/accounts/1", nil)

	rr := httptest.NewRecorder()
	rs.fail(rr, req, errors.New("pq: connection reset"), "", nil)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	res := decodeResult(t, rr)
	assert.NotContains(t, res.Message, "connection reset")
	assert.Contains(t, logs.String(), "connection reset")
	assert.Contains(t, logs.String(), "/accounts/1")
}

func TestFormHelpers(t *testing.T) {
	vals := url.Values{
		"a":      {"on"},
		"b":      {"off"},
		"amount": {" 12,5 "},
		"bad":    {"1.2.3"},
		"day":    {"15"},
		"word":   {"x"},
	}
	v := validation.Violations{}

	assert.True(t, checked(vals, "a"))
	assert.False(t, checked(vals, "b"))
	assert.False(t, checked(vals, "missing"))
	assert.Equal(t, "12.5", formDecimal(vals, "amount", v).String())
	assert.Nil(t, formOptDecimal(vals, "missing", v))
	formDecimal(vals, "bad", v)
	if day := formOptInt(vals, "day", v); assert.NotNil(t, day) {
		assert.Equal(t, 15, *day)
	}
	assert.Nil(t, formOptInt(vals, "word", v))

	assert.Equal(t, validation.Violations{"bad": "invalid_number", "word": "invalid_number"}, v)
}
