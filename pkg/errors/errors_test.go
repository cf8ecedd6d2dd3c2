package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeInvalidOwner, status: http.StatusInternalServerError, publicMsg: "cart owner could not be resolved"},
		{code: CodeProductNotFound, status: http.StatusBadRequest, publicMsg: "product not found"},
		{code: CodeProductUnavailable, status: http.StatusBadRequest, publicMsg: "product unavailable"},
		{code: CodeInsufficientStock, status: http.StatusBadRequest, publicMsg: "insufficient stock", detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestExposeMessageFlag(t *testing.T) {
	require.True(t, MetadataFor(CodeValidation).ExposeMessage)
	require.True(t, MetadataFor(CodeInsufficientStock).ExposeMessage)
	require.False(t, MetadataFor(CodeInternal).ExposeMessage)
	require.False(t, MetadataFor(CodeDependency).ExposeMessage)
	require.False(t, MetadataFor(CodeInvalidOwner).ExposeMessage)
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("connection refused"), "load cart")
	require.Equal(t, "DEPENDENCY_ERROR: load cart: connection refused", err.Error())
	require.Equal(t, "NOT_FOUND: review not found", New(CodeNotFound, "review not found").Error())
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeConflict, "duplicate"))
	require.True(t, IsCode(err, CodeConflict))
	require.False(t, IsCode(err, CodeNotFound))
	require.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestAsFindsWrappedTypedError(t *testing.T) {
	inner := New(CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{"available_quantity": 2})
	outer := fmt.Errorf("add item: %w", inner)
	got := As(outer)
	if got == nil || got.Code() != CodeInsufficientStock {
		t.Fatalf("expected wrapped typed error, got %v", got)
	}
	details, ok := got.Details().(map[string]any)
	if !ok || details["available_quantity"] != 2 {
		t.Fatalf("unexpected details %v", got.Details())
	}
}

func TestDumpDecodesPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "cart_items_cart_product_key", TableName: "cart_items", Message: "duplicate key value"}
	err := Wrap(CodeConflict, pgErr, "insert cart item")

	dump := Dump(err)
	if dump.Code != CodeConflict {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if dump.PG == nil || dump.PG.Code != "23505" || dump.PG.Constraint != "cart_items_cart_product_key" || dump.PG.Table != "cart_items" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain to include the pg cause, got %v", dump.Chain)
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || len(d.Chain) != 0 {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
