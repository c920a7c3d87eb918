// Package crawling scans company careers pages for links to hosted ATS boards.
package crawling

import "fmt"

// CrawlError represents a failure to load a careers page
type CrawlError struct {
	URL     string
	Message string
	Cause   error
}

func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crawl error: %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("crawl error: %s: %s", e.URL, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// LinkExtractionError represents a failure in extracting links from HTML
type LinkExtractionError struct {
	Message string
	Cause   error
}

func (e *LinkExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("link extraction error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("link extraction error: %s", e.Message)
}

func (e *LinkExtractionError) Unwrap() error {
	return e.Cause
}
