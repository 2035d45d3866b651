package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "quote request failed")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsThroughFmtWrap(t *testing.T) {
	inner := New(CodeValidation, "quantity exceeds available stock")
	outer := fmt.Errorf("set quantity: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error through fmt wrap")
	}
	if typed.Code() != CodeValidation {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestMetadataForUnknownCode(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown codes must map to 500, got %d", meta.HTTPStatus)
	}
}

func TestIsAuthOrNotFound(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{New(CodeUnauthorized, "session expired"), true},
		{New(CodeForbidden, "operator accounts carry no cart"), true},
		{New(CodeNotFound, "cart not found"), true},
		{New(CodeDependency, "cart service unreachable"), false},
		{stdErrors.New("plain"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsAuthOrNotFound(tc.err); got != tc.want {
			t.Fatalf("IsAuthOrNotFound(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestNilErrorAccessors(t *testing.T) {
	var err *Error
	if err.Code() != CodeInternal {
		t.Fatal("nil error should report internal code")
	}
	if err.Error() != "" {
		t.Fatal("nil error should stringify empty")
	}
}
