// Package handlers exposes the services over HTTP. Every handler answers
// JSON (httpx.Result) when the client asks for it and HTML otherwise.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/i18n"
	"github.com/diewo77/go-backoffice/internal/services"
	"github.com/diewo77/go-backoffice/internal/tenant"
	"github.com/diewo77/go-backoffice/validation"
	"github.com/diewo77/go-backoffice/view"
)

// errInvalidBody is returned when a request body cannot be decoded.
var errInvalidBody = errors.New("invalid_form")

type responder struct {
	log *logrus.Logger
}

// statusFor maps an error class to its HTTP status.
func statusFor(class string) int {
	switch class {
	case services.ClassOK:
		return http.StatusOK
	case services.ClassValidation:
		return http.StatusBadRequest
	case services.ClassAuthorization:
		return http.StatusForbidden
	case services.ClassConflict, services.ClassReferential:
		return http.StatusConflict
	case services.ClassNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// result translates err into a status and a failed Result for lang.
func (rs responder) result(r *http.Request, err error) (int, httpx.Result) {
	lang := i18n.LangFromContext(r.Context())
	if errors.Is(err, errInvalidBody) {
		return http.StatusBadRequest, httpx.Fail(i18n.T(lang, "invalid_form"))
	}
	class := services.Classify(err)
	status := statusFor(class)
	var (
		ve *services.ValidationError
		ce *services.ConflictError
		re *services.ReferentialError
	)
	switch {
	case errors.As(err, &ve):
		fields := make(map[string]string, len(ve.Fields))
		for f, code := range ve.Fields {
			fields[f] = i18n.T(lang, code)
		}
		return status, httpx.Invalid(i18n.T(lang, "validation_failed"), fields)
	case errors.As(err, &ce):
		return status, httpx.Conflict(i18n.T(lang, ce.Code), ce.Field)
	case errors.As(err, &re):
		return status, httpx.Fail(i18n.Tf(lang, re.Code, re.Count))
	case errors.Is(err, services.ErrNoTenant):
		return status, httpx.Fail(i18n.T(lang, "no_tenant"))
	case class == services.ClassAuthorization:
		return status, httpx.Fail(i18n.T(lang, "forbidden"))
	case class == services.ClassNotFound:
		return status, httpx.Fail(i18n.T(lang, "not_found"))
	}
	rs.log.WithContext(r.Context()).WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error("request failed")
	return status, httpx.Fail(i18n.T(lang, "internal_error"))
}

// fail answers err. HTML requests get form re-rendered with the messages
// when form is set, a plain error page otherwise.
func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error, form string, data map[string]any) {
	status, res := rs.result(r, err)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, status, res)
		return
	}
	if form == "" {
		http.Error(w, res.Message, status)
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["Message"] = res.Message
	data["Errors"] = res.Errors
	if res.Field != "" {
		data["Errors"] = map[string]string{res.Field: res.Message}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	rs.render(w, r, form, data)
}

// done answers a successful mutation: JSON gets the payload, HTML is
// redirected to next.
func (rs responder) done(w http.ResponseWriter, r *http.Request, status int, message string, payload any, next string) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, status, httpx.OK(i18n.T(i18n.LangFromContext(r.Context()), message), payload))
		return
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// page answers a read: JSON gets payload, HTML renders name with data.
func (rs responder) page(w http.ResponseWriter, r *http.Request, name string, payload any, data map[string]any) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, httpx.OK("", payload))
		return
	}
	rs.render(w, r, name, data)
}

func (rs responder) render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	if err := view.Render(w, r, name, data); err != nil {
		rs.log.WithContext(r.Context()).WithError(err).WithField("template", name).Error("render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// caller returns the tenant context resolved by tenant.Middleware.
func caller(r *http.Request) tenant.Context {
	return tenant.From(r.Context())
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// decode fills dst from a JSON body, or from the posted form via fromForm.
func decode(r *http.Request, dst any, fromForm func(url.Values) error) error {
	if isJSONBody(r) {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return errInvalidBody
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return errInvalidBody
	}
	return fromForm(r.PostForm)
}

// violations returns nil when v is empty.
func violations(v validation.Violations) error {
	if v.Empty() {
		return nil
	}
	return &services.ValidationError{Fields: v}
}

// checked reports whether a checkbox was submitted.
func checked(vals url.Values, key string) bool {
	switch strings.ToLower(vals.Get(key)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func formString(vals url.Values, key string) string {
	return strings.TrimSpace(vals.Get(key))
}

func formDecimal(vals url.Values, key string, v validation.Violations) decimal.Decimal {
	raw := formString(vals, key)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		v.Add(key, "invalid_number")
	}
	return d
}

func formOptDecimal(vals url.Values, key string, v validation.Violations) *decimal.Decimal {
	if formString(vals, key) == "" {
		return nil
	}
	d := formDecimal(vals, key, v)
	return &d
}

func formOptInt(vals url.Values, key string, v validation.Violations) *int {
	raw := formString(vals, key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.Add(key, "invalid_number")
		return nil
	}
	return &n
}
