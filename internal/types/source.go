package types

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SourceType tags which ATS connector owns a source.
type SourceType string

const (
	SourceGreenhouse SourceType = "greenhouse"
	SourceLever      SourceType = "lever"
	SourceAshby      SourceType = "ashby"
	SourceWorkday    SourceType = "workday"
	SourceICIMS      SourceType = "icims"

	// SourceDiscovery is only used in the run ledger for discovery attempts.
	SourceDiscovery SourceType = "discovery"
)

// Source is a known ATS endpoint for a company. At most one per (CompanyID, SourceType).
type Source struct {
	CompanyID     uuid.UUID  `json:"company_id"`
	SourceType    SourceType `json:"source_type"`
	CareersURL    string     `json:"careers_url"`
	Token         string     `json:"token"`
	IsActive      bool       `json:"is_active"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

// SortSourceTypes returns a sorted copy with duplicates removed.
func SortSourceTypes(in []SourceType) []SourceType {
	seen := make(map[SourceType]struct{}, len(in))
	out := make([]SourceType, 0, len(in))
	for _, st := range in {
		if _, ok := seen[st]; ok {
			continue
		}
		seen[st] = struct{}{}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ContainsSourceType reports whether st is in the set.
func ContainsSourceType(set []SourceType, st SourceType) bool {
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}

// AddSourceType returns the sorted union of set and st.
func AddSourceType(set []SourceType, st SourceType) []SourceType {
	return SortSourceTypes(append(append([]SourceType{}, set...), st))
}

// RemoveSourceType returns set without st.
func RemoveSourceType(set []SourceType, st SourceType) []SourceType {
	out := make([]SourceType, 0, len(set))
	for _, s := range set {
		if s != st {
			out = append(out, s)
		}
	}
	return out
}
