// ABOUTME: Reader for memory.jsonl exports, one entity with its notes and edges per line
// ABOUTME: Lines become one Candidates payload so the Normalizer applies them as a single batch
package core

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/harper/muleta/internal/models"
)

// maxMemoryLine bounds one JSONL record; descriptions can be long
const maxMemoryLine = 4 << 20

type memoryLine struct {
	Entity *struct {
		Name        string `json:"name"`
		EntityType  string `json:"entity_type"`
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"entity"`
	Observations []json.RawMessage `json:"observations"`
	Relations    []struct {
		ToEntityName string `json:"to_entity_name"`
		To           string `json:"to"`
		RelationType string `json:"relation_type"`
		Type         string `json:"type"`
		Evidence     string `json:"evidence"`
	} `json:"relations"`
}

type memoryObservation struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// ParseMemoryJSONL reads {"entity", "observations", "relations"} records.
// Observations may be plain strings or {"content", "confidence"} objects.
// Blank lines are skipped; a malformed line fails the whole read.
func ParseMemoryJSONL(r io.Reader) (models.Candidates, error) {
	var out models.Candidates
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMemoryLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line memoryLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return models.Candidates{}, lineError(lineNo, err)
		}

		owner := ""
		if line.Entity != nil {
			owner = line.Entity.Name
			out.Entities = append(out.Entities, models.CandidateEntity{
				Name:        line.Entity.Name,
				Type:        firstNonEmpty(line.Entity.EntityType, line.Entity.Type),
				Description: line.Entity.Description,
			})
		}
		for _, rawObs := range line.Observations {
			obs, err := decodeMemoryObservation(rawObs)
			if err != nil {
				return models.Candidates{}, lineError(lineNo, err)
			}
			out.Observations = append(out.Observations, models.CandidateObservation{
				EntityName: owner,
				Content:    obs.Content,
				Confidence: obs.Confidence,
			})
		}
		for _, rel := range line.Relations {
			out.Relations = append(out.Relations, models.CandidateRelation{
				FromName: owner,
				ToName:   firstNonEmpty(rel.ToEntityName, rel.To),
				Type:     firstNonEmpty(rel.RelationType, rel.Type),
				Evidence: rel.Evidence,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return models.Candidates{}, fmt.Errorf("reading memory file at line %d: %w", lineNo+1, err)
	}
	return out, nil
}

func decodeMemoryObservation(raw json.RawMessage) (memoryObservation, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return memoryObservation{Content: text}, nil
	}
	var obs memoryObservation
	if err := json.Unmarshal(raw, &obs); err != nil {
		return memoryObservation{}, err
	}
	return obs, nil
}

func lineError(n int, err error) error {
	return models.NewValidationError(fmt.Sprintf("line %d", n), err.Error())
}
