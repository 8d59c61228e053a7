package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestEveryCodeHasMetadata(t *testing.T) {
	codes := []Code{
		CodeValidation, CodeUnauthorized, CodeForbidden, CodeNotFound, CodeConflict,
		CodeInternal, CodeDependency, CodeIdempotency, CodeRateLimit,
		CodeInvalidState, CodeInsufficient, CodeIneligible,
	}
	for _, code := range codes {
		meta, ok := metadataByCode[code]
		if !ok {
			t.Fatalf("%s has no metadata", code)
		}
		if meta.HTTPStatus < 400 || meta.PublicMessage == "" {
			t.Fatalf("%s: incomplete metadata %+v", code, meta)
		}
		if meta.Retryable && meta.HTTPStatus < 500 {
			t.Fatalf("%s: only server-side failures are retryable", code)
		}
	}
}

func TestAssignmentOutcomesAreConflictsWithDetails(t *testing.T) {
	for _, code := range []Code{CodeInvalidState, CodeInsufficient, CodeIneligible, CodeIdempotency} {
		meta := MetadataFor(code)
		if meta.HTTPStatus != http.StatusConflict || !meta.DetailsAllowed {
			t.Fatalf("%s: got %+v", code, meta)
		}
	}
	if meta := MetadataFor(CodeRateLimit); meta.HTTPStatus != http.StatusTooManyRequests {
		t.Fatalf("rate limit status %d", meta.HTTPStatus)
	}
	if meta := MetadataFor(CodeForbidden); meta.DetailsAllowed {
		t.Fatalf("forbidden must not leak details")
	}
}

func TestMetadataForUnknownCode(t *testing.T) {
	if got, want := MetadataFor("NOPE"), MetadataFor(CodeInternal); got != want {
		t.Fatalf("unknown code should map to internal, got %+v", got)
	}
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	if e.Code() != CodeInternal || e.Message() != "" || e.Details() != nil || e.Unwrap() != nil || e.Error() != "" {
		t.Fatalf("nil *Error accessors should return zero values")
	}
	if e.WithDetails("x") != nil {
		t.Fatalf("WithDetails on nil should stay nil")
	}
}

func TestWrapKeepsCauseAndFormatsMessage(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load order").WithDetails([]string{"orders"})

	if !stdErrors.Is(err, cause) {
		t.Fatalf("cause lost")
	}
	if got := err.Error(); got != "DEPENDENCY_ERROR: load order: connection reset" {
		t.Fatalf("unexpected text %q", got)
	}
	if details, ok := err.Details().([]string); !ok || details[0] != "orders" {
		t.Fatalf("details lost: %#v", err.Details())
	}
	if got := New(CodeNotFound, "order").Error(); got != "NOT_FOUND: order" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestIsCodeAndAsWalkTheChain(t *testing.T) {
	inner := New(CodeInsufficient, "need 2 male workers, found 1")
	outer := fmt.Errorf("auto assign: %w", inner)

	if As(outer) != inner {
		t.Fatalf("As should return the typed error")
	}
	if !IsCode(outer, CodeInsufficient) || IsCode(outer, CodeNotFound) {
		t.Fatalf("IsCode mismatch")
	}
	if As(nil) != nil || IsCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("untyped errors carry no code")
	}
}

func TestDumpListsChain(t *testing.T) {
	d := Dump(Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "load order"))
	if d.Code != CodeDependency || len(d.Chain) != 2 {
		t.Fatalf("unexpected dump %+v", d)
	}
	if !strings.Contains(d.Chain[len(d.Chain)-1], "refused") {
		t.Fatalf("chain should end at the root cause: %v", d.Chain)
	}
	if d.PGFields.Code != "" {
		t.Fatalf("no pg fields expected")
	}
}
