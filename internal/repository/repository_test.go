package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPrefixed(t *testing.T) {
	got := prefixed("p", "id, seller_id,\n name")
	want := "p.id, p.seller_id, p.name"
	if got != want {
		t.Errorf("prefixed() = %q, want %q", got, want)
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, 20, 0},
		{50, 10, 50, 10},
		{500, -3, 20, 0},
	}
	for _, tt := range tests {
		l, o := clampPage(tt.limit, tt.offset)
		if l != tt.wantLimit || o != tt.wantOffset {
			t.Errorf("clampPage(%d, %d) = (%d, %d), want (%d, %d)", tt.limit, tt.offset, l, o, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestMapWriteError(t *testing.T) {
	if err := mapWriteError(&pgconn.PgError{Code: "23505"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("mapWriteError(unique) = %v, want ErrDuplicate", err)
	}
	other := &pgconn.PgError{Code: "23503"}
	if err := mapWriteError(other); err != other {
		t.Errorf("mapWriteError(fk) = %v, want passthrough", err)
	}
	if err := mapWriteError(nil); err != nil {
		t.Errorf("mapWriteError(nil) = %v, want nil", err)
	}
}

func TestPrefixPattern(t *testing.T) {
	tests := map[string]string{
		"Bob":   "bob%",
		" al_ ": `al\_%`,
		"50%":   `50\%%`,
		"":      "%",
	}
	for in, want := range tests {
		if got := prefixPattern(in); got != want {
			t.Errorf("prefixPattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContainsPattern(t *testing.T) {
	tests := map[string]string{
		"Lamp":    "%lamp%",
		" 100% ":  `%100\%%`,
		"a_b":     `%a\_b%`,
		`back\sl`: `%back\\sl%`,
	}
	for in, want := range tests {
		if got := containsPattern(in); got != want {
			t.Errorf("containsPattern(%q) = %q, want %q", in, got, want)
		}
	}
}
