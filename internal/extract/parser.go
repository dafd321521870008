// ABOUTME: Tolerant parser for model output holding entities and relations
// ABOUTME: Tries plain JSON, fenced blocks, then the outermost brace span
package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/harper/muleta/internal/models"
)

var (
	jsonFence    = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	genericFence = regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```")
	braceSpan    = regexp.MustCompile(`(?s)(\{.*\})`)
)

// errMissingKeys marks a JSON object without the entities and relations keys
var errMissingKeys = errors.New("response lacks entities or relations")

// ParseResponse interprets raw model output. Empty output is a success with
// no candidates.
func ParseResponse(source, raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Success(source, models.Candidates{})
	}

	c, err := decodeCandidates(trimmed)
	if err == nil {
		return Success(source, c)
	}
	lastErr := err

	for _, pattern := range []*regexp.Regexp{jsonFence, genericFence, braceSpan} {
		for _, match := range pattern.FindAllStringSubmatch(trimmed, -1) {
			c, err := decodeCandidates(match[1])
			if err == nil {
				return Success(source, c)
			}
			lastErr = err
		}
	}
	return ParseFailure(source, raw, lastErr)
}

func decodeCandidates(s string) (models.Candidates, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &keys); err != nil {
		return models.Candidates{}, err
	}
	if _, ok := keys["entities"]; !ok {
		return models.Candidates{}, errMissingKeys
	}
	if _, ok := keys["relations"]; !ok {
		return models.Candidates{}, errMissingKeys
	}

	var c models.Candidates
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return models.Candidates{}, err
	}
	return c, nil
}
