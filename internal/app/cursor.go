package app

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/dvidales/appliq/internal/domain"
)

// Cursor format: base64(iso8601(createdAt) + "|" + applicationId).
// This is the one bit-exact wire contract owned by the core; everything else
// about serialization belongs to the HTTP adapter.

const cursorTimeFormat = time.RFC3339Nano

func encodeCursor(createdAt time.Time, id string) string {
	raw := createdAt.UTC().Format(cursorTimeFormat) + "|" + id
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", &domain.BadRequestError{Reason: "malformed cursor"}
	}

	ts, id, found := strings.Cut(string(raw), "|")
	if !found || id == "" {
		return time.Time{}, "", &domain.BadRequestError{Reason: "malformed cursor"}
	}

	createdAt, err := time.Parse(cursorTimeFormat, ts)
	if err != nil {
		return time.Time{}, "", &domain.BadRequestError{Reason: "malformed cursor"}
	}

	return createdAt, id, nil
}
