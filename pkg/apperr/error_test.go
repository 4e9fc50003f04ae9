package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

const errTestPrefix = "apperr:error_test"

func TestDeriveCode(t *testing.T) {
	tests := []struct {
		status int
		want   int
	}{
		{40001, 400},
		{50000, 500},
		{42901, 429},
		{404, 404},
		{999, 999},
		{1000, 100},
		{0, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			if got := DeriveCode(tt.status); got != tt.want {
				t.Errorf("%s - DeriveCode(%d) = %d, want %d", errTestPrefix, tt.status, got, tt.want)
			}
		})
	}
}

func TestKinds_FiveDigitStatusAndUniqueNames(t *testing.T) {
	seen := make(map[int]string)
	for _, k := range Kinds() {
		if k.Status < 10000 || k.Status > 99999 {
			t.Errorf("%s - %s has non 5-digit status %d", errTestPrefix, k.Name, k.Status)
		}
		if prev, dup := seen[k.Status]; dup {
			t.Errorf("%s - status %d shared by %s and %s", errTestPrefix, k.Status, prev, k.Name)
		}
		seen[k.Status] = k.Name
	}
}

func TestKind_NewSetsMessage(t *testing.T) {
	err := NotFound.New("user 42 not found")

	if err.Message != "user 42 not found" {
		t.Errorf("%s - Message = %q", errTestPrefix, err.Message)
	}
	if err.Name != "NotFoundError" {
		t.Errorf("%s - Name = %q", errTestPrefix, err.Name)
	}
	if err.Code() != 404 {
		t.Errorf("%s - Code() = %d, want 404", errTestPrefix, err.Code())
	}
	if err.Error() != "NotFoundError: user 42 not found" {
		t.Errorf("%s - Error() = %q", errTestPrefix, err.Error())
	}
	if !strings.Contains(err.Stack(), "TestKind_NewSetsMessage") {
		t.Errorf("%s - stack should start at the caller, got:\n%s", errTestPrefix, err.Stack())
	}
}

func TestKind_WithDetailMergesFields(t *testing.T) {
	cause := errors.New("connection refused")
	err := ExternalServiceFailure.WithDetail(map[string]any{
		"message":         "billing unavailable",
		"readableMessage": "Please try again later",
		"service":         "billing",
		"attempt":         3,
		"cause":           cause,
		"status":          1,
	})

	if err.Message != "billing unavailable" {
		t.Errorf("%s - Message = %q", errTestPrefix, err.Message)
	}
	if err.ReadableMessage != "Please try again later" {
		t.Errorf("%s - ReadableMessage = %q", errTestPrefix, err.ReadableMessage)
	}
	if err.Status != 50200 {
		t.Errorf("%s - Status must stay fixed by the kind, got %d", errTestPrefix, err.Status)
	}
	if err.Details["service"] != "billing" || err.Details["attempt"] != 3 {
		t.Errorf("%s - Details = %v", errTestPrefix, err.Details)
	}
	if !errors.Is(err, cause) {
		t.Errorf("%s - expected errors.Is to reach the cause", errTestPrefix)
	}
	if !strings.Contains(err.Stack(), derivedMarker+"\nconnection refused") {
		t.Errorf("%s - stack missing derived cause:\n%s", errTestPrefix, err.Stack())
	}
	if !strings.HasPrefix(err.Stack(), "ExternalServiceFailureError: billing unavailable") {
		t.Errorf("%s - stack header not refreshed:\n%s", errTestPrefix, err.Stack())
	}
}

func TestWrap_AppendsApplicationCauseTrace(t *testing.T) {
	inner := EntityNotFound.New("row missing")
	outer := Internal.Wrap(inner, "lookup failed")

	if !strings.Contains(outer.Stack(), derivedMarker+"\nEntityNotFoundError: row missing") {
		t.Errorf("%s - expected inner trace after marker:\n%s", errTestPrefix, outer.Stack())
	}
	if !EntityNotFound.Is(outer) {
		t.Errorf("%s - EntityNotFound.Is should see wrapped cause", errTestPrefix)
	}
}

func TestDetail_ExcludesBookkeeping(t *testing.T) {
	err := Conflict.New("version mismatch")
	err.Details = map[string]any{"stack": "x", "message": "y", "etag": "abc"}

	d := err.Detail()
	if _, ok := d["stack"]; ok {
		t.Errorf("%s - Detail leaked stack", errTestPrefix)
	}
	if _, ok := d["message"]; ok {
		t.Errorf("%s - Detail leaked message", errTestPrefix)
	}
	if d["etag"] != "abc" {
		t.Errorf("%s - Detail lost etag: %v", errTestPrefix, d)
	}
}

func TestToObject_StackOnlyInDevelopment(t *testing.T) {
	defer SetDevelopment(false)
	err := PolicyDeny.New("denied").Set("policy", "tenant-admin")

	SetDevelopment(false)
	obj := err.ToObject()
	if _, ok := obj["stack"]; ok {
		t.Errorf("%s - stack present outside development", errTestPrefix)
	}
	for _, key := range []string{"name", "message", "readableMessage", "status", "code", "policy"} {
		if _, ok := obj[key]; !ok {
			t.Errorf("%s - ToObject missing %q", errTestPrefix, key)
		}
	}
	if obj["readableMessage"] != "denied" {
		t.Errorf("%s - readableMessage should default to message, got %v", errTestPrefix, obj["readableMessage"])
	}

	SetDevelopment(true)
	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("%s - marshal: %v", errTestPrefix, jerr)
	}
	var decoded map[string]any
	if jerr := json.Unmarshal(data, &decoded); jerr != nil {
		t.Fatalf("%s - unmarshal: %v", errTestPrefix, jerr)
	}
	if _, ok := decoded["stack"]; !ok {
		t.Errorf("%s - stack missing in development", errTestPrefix)
	}
	if decoded["code"] != float64(403) {
		t.Errorf("%s - code = %v, want 403", errTestPrefix, decoded["code"])
	}
}

func TestFrom(t *testing.T) {
	appErr := Conflict.New("dup")
	tests := []struct {
		name string
		in   error
		want Kind
	}{
		{"application error passes through", appErr, Conflict},
		{"wrapped application error", fmt.Errorf("ctx: %w", appErr), Conflict},
		{"context cancelled", context.Canceled, Cancelled},
		{"deadline", fmt.Errorf("slow: %w", context.DeadlineExceeded), TaskTimeout},
		{"plain error", errors.New("boom"), Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.in)
			if got.Status != tt.want.Status {
				t.Errorf("%s - From() status = %d, want %d", errTestPrefix, got.Status, tt.want.Status)
			}
		})
	}
	if From(appErr) != appErr {
		t.Errorf("%s - From should return the same pointer for application errors", errTestPrefix)
	}
	if From(nil) != nil {
		t.Errorf("%s - From(nil) should be nil", errTestPrefix)
	}
}

func TestFromPanic(t *testing.T) {
	appErr := TooManyTries.New("locked")
	if FromPanic(appErr) != appErr {
		t.Errorf("%s - application error panics should pass through", errTestPrefix)
	}
	got := FromPanic("kaboom")
	if got.Status != Internal.Status || !strings.Contains(got.Message, "kaboom") {
		t.Errorf("%s - FromPanic(string) = %v", errTestPrefix, got)
	}
}

func TestLookup(t *testing.T) {
	if k, ok := Lookup("MethodNotFound"); !ok || k != MethodNotFound {
		t.Errorf("%s - Lookup(MethodNotFound) = %v, %v", errTestPrefix, k, ok)
	}
	if k, ok := Lookup("TooManyRequestsError"); !ok || k != TooManyRequests {
		t.Errorf("%s - Lookup(TooManyRequestsError) = %v, %v", errTestPrefix, k, ok)
	}
	if _, ok := Lookup("Nope"); ok {
		t.Errorf("%s - Lookup(Nope) should fail", errTestPrefix)
	}
}
