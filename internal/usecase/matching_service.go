package usecase

import (
	"sort"
	"strings"

	"github.com/firmscout/backend/internal/domain"
	"go.uber.org/zap"
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	EnableDebugLogging bool
}

// MatchingService scores companies against keyword queries
type MatchingService struct {
	preprocessor       *QueryPreprocessor
	enableDebugLogging bool
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	return &MatchingService{
		preprocessor:       NewQueryPreprocessor(config.EnableDebugLogging),
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Rank filters companies to those matching at least one keyword and orders them
// by match score, highest first. Equal scores keep their input order.
func (s *MatchingService) Rank(companies []domain.Company, rawKeywords string) ([]domain.MatchResult, error) {
	keywords, err := s.preprocessor.Keywords(rawKeywords)
	if err != nil {
		return nil, err
	}
	return s.RankKeywords(companies, keywords), nil
}

// RankKeywords is Rank for already normalized keywords
func (s *MatchingService) RankKeywords(companies []domain.Company, keywords []string) []domain.MatchResult {
	results := make([]domain.MatchResult, 0)
	for _, company := range companies {
		matched := matchKeywords(company.SearchText, keywords)
		if len(matched) == 0 {
			continue
		}
		results = append(results, domain.MatchResult{
			Name:            company.Name,
			Description:     company.Description,
			DetailLink:      company.DetailLink,
			LogoURL:         company.LogoURL,
			MatchedKeywords: matched,
			MatchScore:      len(matched),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})

	if s.enableDebugLogging {
		zap.L().Debug("companies ranked",
			zap.String("component", "matcher"),
			zap.Strings("keywords", keywords),
			zap.Int("companies", len(companies)),
			zap.Int("matched", len(results)),
		)
	}

	return results
}

// matchKeywords returns the keywords found in searchText, in keyword order
func matchKeywords(searchText string, keywords []string) []string {
	var matched []string
	for _, keyword := range keywords {
		if strings.Contains(searchText, keyword) {
			matched = append(matched, keyword)
		}
	}
	return matched
}
