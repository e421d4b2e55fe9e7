package domain

import (
	"strings"
	"time"
)

// Company is a single firm extracted from the directory page.
// Companies are immutable once extracted.
type Company struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DetailLink  string `json:"detailLink"`
	LogoURL     string `json:"logoUrl"`

	// SearchText is lowercase(name + " " + description), computed once at extraction.
	SearchText string `json:"-"`
}

// NewCompany builds a Company with its search text derived from name and description.
func NewCompany(name, description, detailLink, logoURL string) Company {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	return Company{
		Name:        name,
		Description: description,
		DetailLink:  detailLink,
		LogoURL:     logoURL,
		SearchText:  BuildSearchText(name, description),
	}
}

// BuildSearchText returns the normalized text used for keyword matching
func BuildSearchText(name, description string) string {
	return strings.ToLower(strings.TrimSpace(name) + " " + strings.TrimSpace(description))
}

// MatchResult represents a company that matched at least one query keyword
type MatchResult struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	DetailLink      string   `json:"detailLink"`
	LogoURL         string   `json:"logoUrl"`
	MatchedKeywords []string `json:"matchedKeywords"`
	MatchScore      int      `json:"matchScore"`
}

// SearchRequest represents a keyword search request
type SearchRequest struct {
	Keywords string `json:"keywords" form:"keywords"`
}

// SearchResult is the outcome of a single pipeline run
type SearchResult struct {
	TotalRecords    int           `json:"totalRecords"`
	MatchedRecords  int           `json:"matchedRecords"`
	Records         []MatchResult `json:"records"`
	Elapsed         time.Duration `json:"-"`
	ServedFromCache bool          `json:"servedFromCache"`
	Stale           bool          `json:"stale,omitempty"`
}

// CacheStatus describes the directory cache without triggering a refresh
type CacheStatus struct {
	Populated  bool          `json:"cached"`
	Fresh      bool          `json:"fresh"`
	CapturedAt time.Time     `json:"capturedAt,omitempty"`
	Age        time.Duration `json:"-"`
	Records    int           `json:"records"`
}
