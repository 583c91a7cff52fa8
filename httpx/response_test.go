package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResult(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusUnprocessableEntity, Invalid("validation_failed", map[string]string{"name": "too_short"}))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var got map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["success"] != false {
		t.Errorf("success = %v", got["success"])
	}
	if _, ok := got["data"]; ok {
		t.Error("data should be omitted when empty")
	}
	if errs, _ := got["errors"].(map[string]any); errs["name"] != "too_short" {
		t.Errorf("errors = %v", got["errors"])
	}
}

func TestConflictResult(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusConflict, Conflict("email_taken", "email"))

	var got map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["field"] != "email" || got["message"] != "email_taken" {
		t.Errorf("result = %v", got)
	}
	if _, ok := got["errors"]; ok {
		t.Error("errors should be omitted for a conflict")
	}
}

func TestWantsJSON(t *testing.T) {
	cases := []struct {
		accept, contentType string
		want                bool
	}{
		{"application/json", "", true},
		{"text/html,application/json", "", false},
		{"", "application/json; charset=utf-8", true},
		{"", "application/x-www-form-urlencoded", false},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Accept", c.accept)
		r.Header.Set("Content-Type", c.contentType)
		if got := WantsJSON(r); got != c.want {
			t.Errorf("WantsJSON(accept=%q, ct=%q) = %v", c.accept, c.contentType, got)
		}
	}
}
