package domain

import (
	"context"
)

// DirectoryFetcher retrieves the raw directory document
type DirectoryFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// CompanyExtractor turns a raw directory document into companies in document order
type CompanyExtractor interface {
	Extract(document []byte) ([]Company, error)
}

// CompanyCache is the single-slot store for the most recent extraction
type CompanyCache interface {
	// Get returns the cached companies and whether they are within the TTL.
	// An empty cache returns nil; a stored set, even with no companies, is non-nil.
	Get() ([]Company, bool)
	Store(companies []Company)
	Invalidate()
	Status() CacheStatus
}
