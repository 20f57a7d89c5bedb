package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"validation", NewValidationError("bad", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		{"conflict", NewConflict("taken", nil), "CONFLICT", http.StatusConflict},
		{"wrapped forbidden", fmt.Errorf("ctx: %w", NewForbidden("no")), "FORBIDDEN", http.StatusForbidden},
		{"no rows", pgx.ErrNoRows, "NOT_FOUND", http.StatusNotFound},
		{"plain", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
		{"malformed uuid", fmt.Errorf("get: %w", &pgconn.PgError{Code: "22P02"}), "VALIDATION_FAILED", http.StatusBadRequest},
		{"rate limited", NewTooManyRequests("slow down"), "RATE_LIMITED", http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %d, want %d", got.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestToDomainError_Nil(t *testing.T) {
	if got := ToDomainError(nil); got != nil {
		t.Errorf("ToDomainError(nil) = %v, want nil", got)
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	de := ToDomainError(errors.New("password=hunter2"))
	if de.Message != "internal server error" {
		t.Errorf("Message = %q, want generic message", de.Message)
	}
	if !errors.Is(de, de.Err) {
		t.Errorf("cause not preserved for logging")
	}
}

func TestIsCode(t *testing.T) {
	if !IsCode(NewConflict("x", nil), "CONFLICT") {
		t.Error("IsCode(conflict, CONFLICT) = false, want true")
	}
	if IsCode(errors.New("x"), "CONFLICT") {
		t.Error("IsCode(plain, CONFLICT) = true, want false")
	}
}
