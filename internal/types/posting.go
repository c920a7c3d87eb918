package types

import (
	"time"

	"github.com/google/uuid"
)

// RawPosting is one job as a connector reported it. Optional fields are nil
// when the payload does not carry them.
type RawPosting struct {
	SourceJobID *string    `json:"source_job_id,omitempty"`
	Title       string     `json:"title"`
	Location    string     `json:"location"`
	ApplyURL    string     `json:"apply_url"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
}

// PostingStatus is the lifecycle state of a posting.
type PostingStatus string

const (
	PostingActive PostingStatus = "active"
	PostingClosed PostingStatus = "closed"
)

// Posting is the persisted history of one job across runs.
//
// Origins records every source type that ever reported the posting; SourcesSeen
// only those that reported it in their latest successful fetch. A posting is
// active exactly when SourcesSeen is non-empty.
type Posting struct {
	Key               string        `json:"key"`
	CompanyID         uuid.UUID     `json:"company_id"`
	SourceJobID       *string       `json:"source_job_id,omitempty"`
	Origins           []SourceType  `json:"origins"`
	SourcesSeen       []SourceType  `json:"sources_seen"`
	Title             string        `json:"title"`
	Location          string        `json:"location"`
	ApplyURL          string        `json:"apply_url"`
	CanonicalApplyURL string        `json:"canonical_apply_url"`
	PostedAt          *time.Time    `json:"posted_at,omitempty"`
	FirstSeenAt       time.Time     `json:"first_seen_at"`
	LastSeenAt        time.Time     `json:"last_seen_at"`
	ClosedAt          *time.Time    `json:"closed_at,omitempty"`
	Status            PostingStatus `json:"status"`
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (p Posting) Clone() Posting {
	c := p
	c.Origins = append([]SourceType(nil), p.Origins...)
	c.SourcesSeen = append([]SourceType(nil), p.SourcesSeen...)
	if p.SourceJobID != nil {
		v := *p.SourceJobID
		c.SourceJobID = &v
	}
	if p.PostedAt != nil {
		v := *p.PostedAt
		c.PostedAt = &v
	}
	if p.ClosedAt != nil {
		v := *p.ClosedAt
		c.ClosedAt = &v
	}
	return c
}

// ProjectionRow is the read-model shape handed to exporters and the API.
type ProjectionRow struct {
	Company     string        `json:"company"`
	Title       string        `json:"title"`
	Location    string        `json:"location"`
	ApplyURL    string        `json:"apply_url"`
	FirstSeenAt time.Time     `json:"first_seen_at"`
	Status      PostingStatus `json:"status"`
}
