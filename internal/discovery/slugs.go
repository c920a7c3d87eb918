package discovery

import (
	"regexp"
	"strings"
)

var (
	nonAlnumRun   = regexp.MustCompile(`[^a-z0-9]+`)
	corporateWord = regexp.MustCompile(`\b(the|inc|incorporated|corp|corporation|co|company|llc|ltd|plc|gmbh|ag|sa|holdings|group)\b`)
)

// Slugs returns board token guesses for a company name, most likely first.
func Slugs(name string) []string {
	lower := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(name, "&", " and ")))
	if lower == "" {
		return nil
	}

	compact := nonAlnumRun.ReplaceAllString(lower, "")
	hyphen := strings.Trim(nonAlnumRun.ReplaceAllString(lower, "-"), "-")
	stripped := corporateWord.ReplaceAllString(lower, " ")
	strippedCompact := nonAlnumRun.ReplaceAllString(stripped, "")
	strippedHyphen := strings.Trim(nonAlnumRun.ReplaceAllString(stripped, "-"), "-")

	seen := make(map[string]bool)
	var out []string
	for _, s := range []string{strippedCompact, compact, strippedHyphen, hyphen} {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
