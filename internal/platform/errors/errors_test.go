package errors

import (
	stderrs "errors"
	"net/http"
	"testing"
)

func TestHTTPStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeInvalidArgument, http.StatusUnprocessableEntity},
		{ErrorCodeDuplicateKey, http.StatusConflict},
		{ErrorCodeConflict, http.StatusConflict},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeJSON, http.StatusBadRequest},
		{ErrorCodeTooManyRequests, http.StatusTooManyRequests},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeDB, http.StatusInternalServerError},
		{ErrorCodePanic, http.StatusInternalServerError},
		{ErrorCodeUnknown, http.StatusInternalServerError},
		{9999, http.StatusInternalServerError}, // default branch
	}
	for _, c := range cases {
		if got := HTTPStatusCode(c.code); got != c.want {
			t.Fatalf("HTTPStatusCode(%v) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestErrorTypeAndMethods(t *testing.T) {
	// nil *Error should render "<nil>"
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("nil *Error render = %q, want <nil>", e.Error())
	}

	// New / Newf
	e1 := New(ErrorCodeValidation, "bad stuff")
	if CodeOf(e1) != ErrorCodeValidation {
		t.Fatalf("CodeOf(New) = %v", CodeOf(e1))
	}
	e2 := Newf(ErrorCodeJSON, "bad json %d", 12)
	if got := e2.Error(); got != "bad json 12" {
		t.Fatalf("Newf().Error = %q", got)
	}

	// Wrap / Wrapf / Unwrap
	src := stderrs.New("root")
	e3 := Wrap(src, ErrorCodeDB, "db failed")
	if u := stderrs.Unwrap(e3); u == nil || u.Error() != "root" {
		t.Fatalf("Wrap did not keep orig")
	}
	if CodeOf(e3) != ErrorCodeDB {
		t.Fatalf("CodeOf(Wrap) = %v", CodeOf(e3))
	}
	e4 := Wrapf(src, ErrorCodeUnavailable, "upstream %s", "down")
	if want := "upstream down: root"; e4.Error() != want {
		t.Fatalf("Wrapf().Error = %q, want %q", e4.Error(), want)
	}

	// As
	if got, ok := As(e4); !ok || got.Code() != ErrorCodeUnavailable {
		t.Fatalf("As() failed for our error")
	}
	if _, ok := As(src); ok {
		t.Fatalf("As() true for foreign error")
	}

	// WithOp (copy-on-write)
	e5 := Wrap(src, ErrorCodeTooManyRequests, "quota")
	e6 := WithOp(e5, "anime_extended")
	if oe, ok := As(e6); !ok || oe.Op() != "anime_extended" {
		t.Fatalf("WithOp failed")
	}
	if oe0, _ := As(e5); oe0.Op() != "" {
		t.Fatalf("copy-on-write mutated original")
	}

	// Wire / WireFrom
	if wf := WireFrom(nil); wf != (Wire{}) {
		t.Fatalf("WireFrom(nil) expected zero, got %+v", wf)
	}
	if wf := WireFrom(src); wf.Code != ErrorCodeUnknown || wf.Message != "root" {
		t.Fatalf("WireFrom(foreign) mismatch: %+v", wf)
	}
	// WireFrom for our error uses only e.msg (not "msg: orig")
	if wf := WireFrom(e4); wf.Code != ErrorCodeUnavailable || wf.Message != "upstream down" {
		t.Fatalf("WireFrom(ours) mismatch: %+v", wf)
	}

	// HTTP and HTTPStatus
	if st, _ := HTTP(nil); st != http.StatusOK {
		t.Fatalf("HTTP(nil) status = %d", st)
	}
	if st := HTTPStatus(e3); st != http.StatusInternalServerError {
		t.Fatalf("HTTPStatus(db) = %d", st)
	}
}

func TestSentinels(t *testing.T) {
	if !IsLocked(ErrLocked) {
		t.Fatalf("IsLocked(ErrLocked) false")
	}
	if IsLocked(stderrs.New("other")) {
		t.Fatalf("IsLocked true for foreign error")
	}
	if !IsBudget(ErrBudgetExhausted) {
		t.Fatalf("IsBudget(ErrBudgetExhausted) false")
	}
	// code match also counts, wrapped variants included
	if !IsBudget(Wrap(stderrs.New("x"), ErrorCodeTooManyRequests, "remote 429")) {
		t.Fatalf("IsBudget false for TooManyRequests code")
	}
	if !IsNotFound(ErrNotFound) || IsNotFound(ErrLocked) {
		t.Fatalf("IsNotFound mismatch")
	}
	// Wrapped sentinels survive errors.Is through Unwrap
	if !stderrs.Is(Wrap(ErrLocked, ErrorCodeConflict, "lease"), ErrLocked) {
		t.Fatalf("wrapped ErrLocked lost identity")
	}
}

func TestRoot(t *testing.T) {
	src := stderrs.New("deep")
	wrapped := Wrap(Wrap(src, ErrorCodeDB, "inner"), ErrorCodeUnavailable, "outer")
	if Root(wrapped) != src {
		t.Fatalf("Root did not reach deepest cause")
	}
	if Root(nil) != nil {
		t.Fatalf("Root(nil) != nil")
	}
}
