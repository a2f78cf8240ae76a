// Package classifier scores fetched pages against a registered work using
// independent weighted signals.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/piracy"
)

// Signal weights. Each signal contributes at most its weight.
const (
	WeightDomain  = 0.20
	WeightURL     = 0.10
	WeightTitle   = 0.30
	WeightAuthor  = 0.15
	WeightISBN    = 0.15
	WeightKeyword = 0.10

	// titleGate is the minimum title match that counts as a signal.
	titleGate = 0.5

	highThreshold   = 0.7
	mediumThreshold = 0.4
)

// DefaultSuspiciousDomains are host fragments of known piracy mirrors.
var DefaultSuspiciousDomains = []string{
	"z-lib", "libgen", "sci-hub", "pdfdrive", "b-ok",
	"bookfi", "bookzz", "freebookspot", "4shared",
	"scribd-download", "pdf-download", "free-ebook",
}

var defaultURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)download.*pdf`),
	regexp.MustCompile(`(?i)free.*download`),
	regexp.MustCompile(`(?i)baixar.*gratis`),
	regexp.MustCompile(`(?i)livro.*gratis`),
	regexp.MustCompile(`(?i)ebook.*free`),
	regexp.MustCompile(`(?i)pirat`),
}

// Result is the outcome of one classification.
type Result struct {
	Score      float64                `json:"score"`
	Confidence piracy.ConfidenceLevel `json:"confidence"`
	Reasons    []string               `json:"reasons"`
}

// Classifier scores pages. It holds no mutable state.
type Classifier struct {
	works   piracy.WorkStore
	domains []string
	urls    []*regexp.Regexp
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithExtraDomains appends host fragments to the suspicious list.
func WithExtraDomains(domains ...string) Option {
	return func(c *Classifier) {
		for _, d := range domains {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				c.domains = append(c.domains, d)
			}
		}
	}
}

// New builds a Classifier reading works from store.
func New(store piracy.WorkStore, opts ...Option) *Classifier {
	c := &Classifier{
		works:   store,
		domains: append([]string(nil), DefaultSuspiciousDomains...),
		urls:    defaultURLPatterns,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify loads the work and scores the page. A missing work scores zero.
func (c *Classifier) Classify(ctx context.Context, workID, pageURL, pageText, pageTitle string) (Result, error) {
	work, err := c.works.GetWork(ctx, workID)
	if errors.Is(err, piracy.ErrNotFound) {
		return Result{Score: 0, Confidence: piracy.ConfidenceLow, Reasons: []string{"Work not found"}}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("load work %s: %w", workID, err)
	}
	return c.Score(work, pageURL, pageText, pageTitle), nil
}

// Score evaluates every signal for an already loaded work.
func (c *Classifier) Score(work piracy.Work, pageURL, pageText, pageTitle string) Result {
	var (
		score   float64
		reasons = []string{}
	)

	domain := hostname(pageURL)
	if c.suspiciousDomain(domain) {
		score += WeightDomain
		reasons = append(reasons, "Suspicious domain: "+domain)
	}

	if c.suspiciousURL(pageURL) {
		score += WeightURL
		reasons = append(reasons, "URL contains suspicious patterns")
	}

	if title := TitleMatch(work.Title, pageTitle, pageText); title > titleGate {
		score += title * WeightTitle
		reasons = append(reasons, fmt.Sprintf("Title match: %d%%", percent(title)))
	}

	if work.Author != "" {
		if author := AuthorPresence(work.Author, pageText); author > 0 {
			score += author * WeightAuthor
			reasons = append(reasons, "Author found in content")
		}
	}

	if work.ISBN != "" && ISBNPresent(work.ISBN, pageText) {
		score += WeightISBN
		reasons = append(reasons, "ISBN match: "+work.ISBN)
	}

	if kw := KeywordCoverage(work.Keywords, pageText); kw > 0 {
		score += kw * WeightKeyword
		reasons = append(reasons, fmt.Sprintf("Keywords matched: %d%%", percent(kw)))
	}

	score = math.Min(score, 1)
	return Result{Score: score, Confidence: Bucket(score), Reasons: reasons}
}

// Bucket maps a score to a confidence level.
func Bucket(score float64) piracy.ConfidenceLevel {
	switch {
	case score >= highThreshold:
		return piracy.ConfidenceHigh
	case score >= mediumThreshold:
		return piracy.ConfidenceMedium
	default:
		return piracy.ConfidenceLow
	}
}

func (c *Classifier) suspiciousDomain(domain string) bool {
	if domain == "" {
		return false
	}
	for _, fragment := range c.domains {
		if strings.Contains(domain, fragment) {
			return true
		}
	}
	return false
}

func (c *Classifier) suspiciousURL(pageURL string) bool {
	for _, re := range c.urls {
		if re.MatchString(pageURL) {
			return true
		}
	}
	return false
}

// TitleMatch is 1.0 when the page title contains the work title, 0.8 when
// the page text does, else the Jaccard similarity of the two title word sets.
func TitleMatch(workTitle, pageTitle, pageText string) float64 {
	work := strings.ToLower(strings.TrimSpace(workTitle))
	if work == "" {
		return 0
	}
	page := strings.ToLower(strings.TrimSpace(pageTitle))
	if strings.Contains(page, work) {
		return 1.0
	}
	if strings.Contains(strings.ToLower(pageText), work) {
		return 0.8
	}
	return jaccard(strings.Fields(work), strings.Fields(page))
}

// AuthorPresence is 1.0 for the full name in text and 0.5 for the last name only.
func AuthorPresence(author, text string) float64 {
	name := strings.ToLower(strings.TrimSpace(author))
	if name == "" {
		return 0
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, name) {
		return 1.0
	}
	parts := strings.Fields(name)
	if len(parts) > 0 && strings.Contains(lower, parts[len(parts)-1]) {
		return 0.5
	}
	return 0
}

// ISBNPresent compares with hyphens and whitespace removed from both sides.
func ISBNPresent(isbn, text string) bool {
	needle := stripISBN(isbn)
	if needle == "" {
		return false
	}
	return strings.Contains(stripISBN(text), needle)
}

// KeywordCoverage is the fraction of keywords found in text.
func KeywordCoverage(keywords []string, text string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

func jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, w := range a {
		setA[w] = struct{}{}
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for w := range setA {
		union[w] = struct{}{}
	}
	intersection := 0
	seen := make(map[string]struct{}, len(b))
	for _, w := range b {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		union[w] = struct{}{}
		if _, ok := setA[w]; ok {
			intersection++
		}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

func stripISBN(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}
