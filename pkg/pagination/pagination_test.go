package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d): expected %d got %d", in, want, got)
		}
	}
	if got := LimitWithBuffer(10); got != 11 {
		t.Fatalf("expected buffer limit 11, got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 3, 5, 8, 30, 0, 123, time.UTC), ID: uuid.New()}
	got, err := ParseCursor(EncodeCursor(want))
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("cursor mismatch %+v vs %+v", got, want)
	}

	if c, err := ParseCursor(" "); err != nil || c != nil {
		t.Fatalf("blank cursor should be nil, got %v %v", c, err)
	}
	if _, err := ParseCursor("not-base64!"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestTrimReturnsNextCursorOnlyWhenMoreRows(t *testing.T) {
	base := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	rows := make([]Cursor, 3)
	for i := range rows {
		rows[i] = Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Minute), ID: uuid.New()}
	}
	identity := func(c Cursor) Cursor { return c }

	page, next := Trim(rows, 2, identity)
	if len(page) != 2 || next == "" {
		t.Fatalf("expected trimmed page with cursor, got %d %q", len(page), next)
	}
	decoded, err := ParseCursor(next)
	if err != nil {
		t.Fatalf("parse next: %v", err)
	}
	if decoded.ID != rows[1].ID {
		t.Fatalf("cursor should point at last kept row")
	}

	page, next = Trim(rows, 3, identity)
	if len(page) != 3 || next != "" {
		t.Fatalf("expected full page without cursor, got %d %q", len(page), next)
	}
}

func TestParseCursorRejectsIncompletePositions(t *testing.T) {
	for _, raw := range []string{`{}`, `{"t":"2026-03-05T00:00:00Z"}`, `[1,2]`} {
		_, err := ParseCursor(base64.RawURLEncoding.EncodeToString([]byte(raw)))
		if !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("%s: expected ErrInvalidCursor, got %v", raw, err)
		}
	}
}

func TestKeysetScope(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{DryRun: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	type row struct {
		ID        uuid.UUID
		CreatedAt time.Time
	}

	first := db.Table("rows").Scopes(Keyset(nil, 10)).Find(&[]row{}).Statement.SQL.String()
	if strings.Contains(first, "created_at <") {
		t.Fatalf("first page should not filter: %s", first)
	}
	if !strings.Contains(first, "ORDER BY created_at DESC,id DESC") || !strings.Contains(first, "LIMIT 11") {
		t.Fatalf("unexpected first page sql: %s", first)
	}

	cursor := &Cursor{CreatedAt: time.Now().UTC(), ID: uuid.New()}
	stmt := db.Table("rows").Where("owner = ?", "x").Scopes(Keyset(cursor, 500)).Find(&[]row{}).Statement
	sql := stmt.SQL.String()
	if !strings.Contains(sql, "owner = ? AND (") || !strings.Contains(sql, "(created_at < ? OR (created_at = ? AND id < ?))") {
		t.Fatalf("keyset filter should be grouped: %s", sql)
	}
	if !strings.Contains(sql, "LIMIT 101") {
		t.Fatalf("limit should be capped: %s", sql)
	}
	if len(stmt.Vars) != 4 {
		t.Fatalf("expected 4 bound vars, got %d", len(stmt.Vars))
	}
}
