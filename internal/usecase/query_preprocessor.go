package usecase

import (
	"strings"

	"github.com/firmscout/backend/internal/domain"
	"go.uber.org/zap"
)

// keywordSeparator splits a raw query into terms
const keywordSeparator = ","

// QueryPreprocessor normalizes raw keyword input into match terms
type QueryPreprocessor struct {
	enableDebugLogging bool
}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor(enableDebugLogging bool) *QueryPreprocessor {
	return &QueryPreprocessor{
		enableDebugLogging: enableDebugLogging,
	}
}

// Keywords lowercases the query, splits it on commas, trims each term and
// drops empty ones. Repeated terms are kept and each counts toward the score.
// Returns domain.ErrInvalidQuery when nothing is left.
func (p *QueryPreprocessor) Keywords(raw string) ([]string, error) {
	parts := strings.Split(strings.ToLower(raw), keywordSeparator)

	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		term := strings.TrimSpace(part)
		if term == "" {
			continue
		}
		keywords = append(keywords, term)
	}

	if len(keywords) == 0 {
		return nil, domain.ErrInvalidQuery
	}

	if p.enableDebugLogging {
		zap.L().Debug("query preprocessed",
			zap.String("component", "query"),
			zap.String("raw", raw),
			zap.Strings("keywords", keywords),
		)
	}

	return keywords, nil
}
