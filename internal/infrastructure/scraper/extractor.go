package scraper

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/firmscout/backend/internal/domain"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FieldRule describes how one company field is read inside a card.
// An empty Attr means the trimmed text of the first match.
type FieldRule struct {
	Selector string
	Attr     string
}

// Selectors is the structural pattern of the directory page
type Selectors struct {
	Card        string
	Name        FieldRule
	Description FieldRule
	DetailLink  FieldRule
	Logo        FieldRule
}

// DefaultSelectors matches the Elementor markup of the directory page.
// A card is a column whose data-settings carry a background.
func DefaultSelectors() Selectors {
	return Selectors{
		Card:        `.elementor-column[data-settings*="background"]`,
		Name:        FieldRule{Selector: "h6.elementor-heading-title"},
		Description: FieldRule{Selector: ".elementor-widget-text-editor p"},
		DetailLink:  FieldRule{Selector: ".elementor-button-link", Attr: "href"},
		Logo:        FieldRule{Selector: "img", Attr: "src"},
	}
}

// Extractor pulls companies out of the directory document
type Extractor struct {
	selectors Selectors
	baseURL   *url.URL
	logger    *zap.Logger
}

// NewExtractor creates an extractor. Relative links are resolved against baseURL
// when it parses as an absolute URL.
func NewExtractor(selectors Selectors, baseURL string) *Extractor {
	e := &Extractor{
		selectors: selectors,
		logger:    zap.L().With(zap.String("component", "extractor")),
	}
	if u, err := url.Parse(baseURL); err == nil && u.IsAbs() {
		e.baseURL = u
	}
	return e
}

// Extract returns the named companies in document order.
// Missing sub-fields become empty strings; cards without a name are dropped.
func (e *Extractor) Extract(document []byte) ([]domain.Company, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(document))
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse directory document")
	}

	cards := doc.Find(e.selectors.Card)
	companies := make([]domain.Company, 0, cards.Length())
	skipped := 0

	cards.Each(func(_ int, card *goquery.Selection) {
		name := e.read(card, e.selectors.Name)
		if name == "" {
			skipped++
			return
		}
		companies = append(companies, domain.NewCompany(
			name,
			e.read(card, e.selectors.Description),
			e.resolve(e.read(card, e.selectors.DetailLink)),
			e.resolve(e.read(card, e.selectors.Logo)),
		))
	})

	if len(companies) == 0 {
		e.logger.Warn("no companies found in directory document",
			zap.Int("cards", cards.Length()),
		)
	} else {
		e.logger.Debug("directory extracted",
			zap.Int("cards", cards.Length()),
			zap.Int("companies", len(companies)),
			zap.Int("skipped", skipped),
		)
	}

	return companies, nil
}

// read applies a field rule to the first matching descendant of the card
func (e *Extractor) read(card *goquery.Selection, rule FieldRule) string {
	if rule.Selector == "" {
		return ""
	}
	node := card.Find(rule.Selector).First()
	if node.Length() == 0 {
		return ""
	}
	if rule.Attr == "" {
		return strings.TrimSpace(node.Text())
	}
	return strings.TrimSpace(node.AttrOr(rule.Attr, ""))
}

func (e *Extractor) resolve(ref string) string {
	if ref == "" || e.baseURL == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return e.baseURL.ResolveReference(u).String()
}
