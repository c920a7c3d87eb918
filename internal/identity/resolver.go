package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/types"
)

// ErrUnresolvable is returned when a posting carries neither a source job id
// nor a usable apply URL.
var ErrUnresolvable = errors.New("posting has no stable identity")

// Context is what the resolver knows about where a raw posting came from.
type Context struct {
	CompanyID  uuid.UUID
	SourceType types.SourceType
	BaseURL    string
}

// Identity is the resolved key plus the canonical URL it may have been derived from.
type Identity struct {
	Key          string
	CanonicalURL string
}

// Resolve computes the posting key. A non-blank source job id wins; otherwise
// the key is a hash of the canonical apply URL. Title and location never take part.
func Resolve(raw types.RawPosting, rc Context) (Identity, error) {
	canonical, urlErr := CanonicalizeURL(raw.ApplyURL, rc.BaseURL)

	if raw.SourceJobID != nil {
		if id := strings.TrimSpace(*raw.SourceJobID); id != "" {
			return Identity{
				Key:          fmt.Sprintf("%s:%s:%s", rc.CompanyID, rc.SourceType, id),
				CanonicalURL: canonical,
			}, nil
		}
	}

	if urlErr != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnresolvable, urlErr)
	}

	return Identity{
		Key:          fmt.Sprintf("%s:url:%s", rc.CompanyID, HashURL(canonical)),
		CanonicalURL: canonical,
	}, nil
}

// HashURL returns the hex sha256 of a canonical URL.
func HashURL(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
