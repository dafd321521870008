// ABOUTME: Rule-based local extractor used when the model is unreachable
// ABOUTME: Quoted phrases and capitalized multi-word spans become concept candidates
package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/harper/muleta/internal/models"
	"github.com/harper/muleta/internal/normalize"
)

// HeuristicSource names candidates produced by the HeuristicExtractor
const HeuristicSource = "heuristic"

// ProximityEvidence is the evidence attached to heuristic relations
const ProximityEvidence = "Proximidade no texto"

var (
	quotedPhrase = regexp.MustCompile(`["“«]([^"“”«»]+)["”»]`)
	// a capitalized word, optionally followed by more capitalized words that
	// may be joined by a lowercase particle ("Escola de Frankfurt")
	capitalizedSpan = regexp.MustCompile(`\p{Lu}[\p{L}\p{N}-]*(?:\s+(?:(?:de|da|do|dos|das|del|of|the|von|van)\s+)?\p{Lu}[\p{L}\p{N}-]*)*`)
)

// sentence-initial words that are capitalized for grammar, not meaning
var stopwords = map[string]bool{
	"o": true, "a": true, "os": true, "as": true, "um": true, "uma": true,
	"este": true, "esta": true, "esse": true, "essa": true, "aquele": true, "aquela": true,
	"para": true, "por": true, "de": true, "da": true, "do": true, "em": true, "na": true, "no": true,
	"e": true, "mas": true, "se": true, "que": true, "como": true, "quando": true, "ele": true, "ela": true,
	"the": true, "an": true, "this": true, "that": true, "in": true, "on": true, "and": true, "but": true,
}

// HeuristicExtractor never fails; it is the deterministic local fallback
type HeuristicExtractor struct{}

// NewHeuristicExtractor creates a HeuristicExtractor
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

// Extract returns concept candidates and proximity relations between them
func (h *HeuristicExtractor) Extract(ctx context.Context, text string) Result {
	var c models.Candidates
	seen := make(map[string]bool)
	add := func(name, description string) {
		name = normalize.DisplayName(name)
		key := normalize.Canonical(name)
		if utf8.RuneCountInString(name) < 3 || seen[key] || stopwords[key] {
			return
		}
		seen[key] = true
		c.Entities = append(c.Entities, models.CandidateEntity{
			Name:        name,
			Type:        string(models.EntityConcept),
			Description: description,
		})
	}

	for _, m := range quotedPhrase.FindAllStringSubmatch(text, -1) {
		add(m[1], "Conceito mencionado: "+truncate(m[1], 20))
	}
	for _, span := range capitalizedSpan.FindAllString(text, -1) {
		add(trimLeadingStopword(span), "Entidade identificada: "+span)
	}

	for i := 0; i+1 < len(c.Entities); i++ {
		c.Relations = append(c.Relations, models.CandidateRelation{
			FromName: c.Entities[i].Name,
			ToName:   c.Entities[i+1].Name,
			Type:     string(models.RelRelatedTo),
			Evidence: ProximityEvidence,
		})
	}
	return Success(HeuristicSource, c)
}

// trimLeadingStopword drops a capitalized article that starts a longer span
func trimLeadingStopword(span string) string {
	fields := strings.Fields(span)
	if len(fields) > 1 && stopwords[normalize.Canonical(fields[0])] {
		return strings.Join(fields[1:], " ")
	}
	return span
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
