package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslateShortLinkInsertErr(t *testing.T) {
	t.Parallel()

	plain := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			"short_code collision",
			&pgconn.PgError{Code: "23505", ConstraintName: "short_links_short_code_key"},
			ErrDuplicateShortCode,
		},
		{
			"session_token collision passes through",
			&pgconn.PgError{Code: "23505", ConstraintName: "short_links_session_token_key"},
			nil, // asserted below: same error back, not ErrDuplicateShortCode
		},
		{
			"non-unique pg error passes through",
			&pgconn.PgError{Code: "23503", ConstraintName: "scans_short_link_id_fkey"},
			nil,
		},
		{
			"plain error passes through",
			plain,
			nil,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := translateShortLinkInsertErr(tc.err)
			if tc.want != nil {
				if !errors.Is(got, tc.want) {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
				return
			}
			if errors.Is(got, ErrDuplicateShortCode) {
				t.Fatalf("error %v must not be treated as a short_code duplicate", tc.err)
			}
			if got != tc.err {
				t.Fatalf("error should pass through unchanged, got %v", got)
			}
		})
	}
}
