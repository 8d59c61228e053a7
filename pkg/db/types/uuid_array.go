// Package dbtypes holds column types shared by the GORM models.
package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UUIDArray maps a Postgres uuid[] column. Array literal parsing and quoting
// are delegated to pq.StringArray; NULL scans as empty and empty writes '{}'.
type UUIDArray []uuid.UUID

func (a *UUIDArray) Scan(src any) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("UUIDArray: %w", err)
	}
	ids := make(UUIDArray, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("UUIDArray: parse %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	*a = ids
	return nil
}

func (a UUIDArray) Value() (driver.Value, error) {
	raw := make(pq.StringArray, len(a))
	for i, id := range a {
		raw[i] = id.String()
	}
	return raw.Value()
}

func (a UUIDArray) Contains(id uuid.UUID) bool {
	return slices.Contains(a, id)
}

// Union returns a copy of a with each id from ids appended unless present.
func (a UUIDArray) Union(ids ...uuid.UUID) UUIDArray {
	out := slices.Clone(a)
	for _, id := range ids {
		if !out.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// Without returns a copy of a with id removed.
func (a UUIDArray) Without(id uuid.UUID) UUIDArray {
	return slices.DeleteFunc(slices.Clone(a), func(existing uuid.UUID) bool {
		return existing == id
	})
}
