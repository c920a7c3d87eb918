package types

import "errors"

// Cursor is the persisted position of the discovery scan over the ordered
// company registry. Version increases by one on every advance and guards
// concurrent saves.
type Cursor struct {
	Offset       int   `json:"offset"`
	CompanyCount int   `json:"company_count"`
	Version      int64 `json:"version"`
}

// ErrCursorConflict is returned when a save races a newer cursor version.
var ErrCursorConflict = errors.New("cursor version conflict")

// Normalize maps the offset into [0, count). An empty registry yields 0.
func (c Cursor) Normalize(count int) Cursor {
	out := c
	out.CompanyCount = count
	if count <= 0 || c.Offset < 0 {
		out.Offset = 0
		return out
	}
	out.Offset = c.Offset % count
	return out
}

// Advance moves the cursor past attempted companies, wrapping to zero at the end.
func (c Cursor) Advance(attempted int) Cursor {
	next := c.Offset + attempted
	if c.CompanyCount <= 0 || next >= c.CompanyCount {
		next = 0
	}
	return Cursor{Offset: next, CompanyCount: c.CompanyCount, Version: c.Version + 1}
}
