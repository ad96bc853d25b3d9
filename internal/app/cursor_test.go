package app

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/dvidales/appliq/internal/domain"
)

func TestCursor_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ts   time.Time
		id   string
	}{
		{"utc second precision", time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC), "5f0c9a2e-14f3-4a7b-9c1d-0e8b7a6d5c4b"},
		{"nanosecond precision", time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC), "00000000-0000-0000-0000-000000000000"},
		{"non-utc zone normalizes", time.Date(2025, 12, 31, 23, 59, 59, 1, time.FixedZone("X", 3600)), "a"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cursor := encodeCursor(tc.ts, tc.id)

			gotTS, gotID, err := decodeCursor(cursor)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if !gotTS.Equal(tc.ts) {
				t.Errorf("timestamp = %v, want %v", gotTS, tc.ts)
			}
			if gotID != tc.id {
				t.Errorf("id = %q, want %q", gotID, tc.id)
			}
		})
	}
}

func TestCursor_MalformedInputs(t *testing.T) {
	cases := []struct {
		name   string
		cursor string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"no separator", base64.StdEncoding.EncodeToString([]byte("2025-03-14T09:26:53Z"))},
		{"empty id", base64.StdEncoding.EncodeToString([]byte("2025-03-14T09:26:53Z|"))},
		{"bad timestamp", base64.StdEncoding.EncodeToString([]byte("yesterday|a-1"))},
		{"tampered payload", "dGFtcGVyZWQ="},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := decodeCursor(tc.cursor)
			var badReq *domain.BadRequestError
			if !errors.As(err, &badReq) {
				t.Errorf("expected BadRequestError, got %v", err)
			}
		})
	}
}
