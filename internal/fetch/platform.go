// Package fetch - platform.go recognizes ATS hosts and extracts board tokens.
package fetch

import (
	"net/url"
	"regexp"
	"strings"
)

// Platform represents a known job board platform.
type Platform string

const (
	// PlatformGreenhouse is the Greenhouse ATS platform
	PlatformGreenhouse Platform = "greenhouse"
	// PlatformLever is the Lever ATS platform
	PlatformLever Platform = "lever"
	// PlatformAshby is the Ashby ATS platform
	PlatformAshby Platform = "ashby"
	// PlatformWorkday is the Workday ATS platform
	PlatformWorkday Platform = "workday"
	// PlatformICIMS is the iCIMS ATS platform
	PlatformICIMS Platform = "icims"
	// PlatformUnknown is an unrecognized platform
	PlatformUnknown Platform = "unknown"
)

var workdayHost = regexp.MustCompile(`^([a-z0-9-]+)(?:\.wd\d+)?\.myworkdayjobs\.com$`)

var localeSegment = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

// DetectPlatform identifies the job board platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Hostname())

	switch {
	case strings.HasSuffix(host, "greenhouse.io"):
		return PlatformGreenhouse
	case strings.HasSuffix(host, "lever.co"):
		return PlatformLever
	case strings.HasSuffix(host, "ashbyhq.com"):
		return PlatformAshby
	case strings.HasSuffix(host, "myworkdayjobs.com"), strings.HasSuffix(host, "workday.com"):
		return PlatformWorkday
	case strings.HasSuffix(host, "icims.com"):
		return PlatformICIMS
	}

	return PlatformUnknown
}

// BoardToken extracts the platform and board identifier from a careers URL.
// Workday tokens are "tenant/site"; iCIMS tokens are the portal host.
// It returns PlatformUnknown and "" when nothing usable is found.
func BoardToken(urlStr string) (Platform, string) {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil || parsed.Host == "" {
		return PlatformUnknown, ""
	}

	host := strings.ToLower(parsed.Hostname())
	segments := pathSegments(parsed.Path)
	platform := DetectPlatform(urlStr)

	switch platform {
	case PlatformGreenhouse:
		if forToken := parsed.Query().Get("for"); forToken != "" {
			return platform, forToken
		}
		// boards-api.greenhouse.io/v1/boards/{token}/jobs
		if len(segments) >= 3 && segments[0] == "v1" && segments[1] == "boards" {
			return platform, segments[2]
		}
		if len(segments) >= 1 && segments[0] != "embed" {
			return platform, segments[0]
		}
	case PlatformLever:
		// api.lever.co/v0/postings/{token}
		if len(segments) >= 3 && segments[0] == "v0" && segments[1] == "postings" {
			return platform, segments[2]
		}
		if len(segments) >= 1 {
			return platform, segments[0]
		}
	case PlatformAshby:
		// api.ashbyhq.com/posting-api/job-board/{token}
		if len(segments) >= 3 && segments[0] == "posting-api" && segments[1] == "job-board" {
			return platform, segments[2]
		}
		if len(segments) >= 1 {
			return platform, segments[0]
		}
	case PlatformWorkday:
		m := workdayHost.FindStringSubmatch(host)
		if m == nil {
			break
		}
		if len(segments) > 0 && localeSegment.MatchString(segments[0]) {
			segments = segments[1:]
		}
		if len(segments) >= 1 {
			return platform, m[1] + "/" + segments[0]
		}
	case PlatformICIMS:
		return platform, host
	}

	return PlatformUnknown, ""
}

func pathSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
