// Package types provides the domain records shared by the registry, the connectors,
// the history engine and the run ledger.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Company is one tracked employer. Position fixes its slot in the ordered
// registry that the discovery cursor walks.
type Company struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	NameNormalized string    `json:"name_normalized"`
	Priority       int       `json:"priority"`
	CareersURL     *string   `json:"careers_url,omitempty"`
	Domain         *string   `json:"domain,omitempty"`
	Position       int64     `json:"position"`
	CreatedAt      time.Time `json:"created_at"`
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// NormalizeName converts a company name to its registry key: lower case, only [a-z0-9].
func NormalizeName(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "")
}

// NormalizeDomain strips scheme, a leading www. and trailing slashes.
func NormalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	return strings.TrimRight(domain, "/")
}
