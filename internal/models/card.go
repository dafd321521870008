// ABOUTME: Spaced-repetition cards and their append-only review history
// ABOUTME: Card state is an explicit NEW/LEARNING/REVIEW tag owned by the scheduler
package models

import (
	"time"
)

// CardType is the kind of study prompt a card holds
type CardType string

const (
	CardDefinition  CardType = "definition"
	CardRelation    CardType = "relation"
	CardSocratic    CardType = "socratic"
	CardApplication CardType = "application"
)

// CardTypes lists every valid card type
var CardTypes = []CardType{CardDefinition, CardRelation, CardSocratic, CardApplication}

// Valid reports whether t is a known card type
func (t CardType) Valid() bool {
	for _, v := range CardTypes {
		if v == t {
			return true
		}
	}
	return false
}

// SocraticSubtype narrows a socratic card to one line of questioning
type SocraticSubtype string

const (
	SocraticWhyImportant SocraticSubtype = "why_important"
	SocraticEvidence     SocraticSubtype = "evidence"
	SocraticImplications SocraticSubtype = "implications"
	SocraticObjections   SocraticSubtype = "objections"
	SocraticRelations    SocraticSubtype = "relations"
)

// SocraticSubtypes lists every valid socratic subtype
var SocraticSubtypes = []SocraticSubtype{
	SocraticWhyImportant, SocraticEvidence, SocraticImplications,
	SocraticObjections, SocraticRelations,
}

// Valid reports whether s is a known socratic subtype
func (s SocraticSubtype) Valid() bool {
	for _, v := range SocraticSubtypes {
		if v == s {
			return true
		}
	}
	return false
}

// CardState is the scheduler state of a card
type CardState string

const (
	StateNew      CardState = "NEW"
	StateLearning CardState = "LEARNING"
	StateReview   CardState = "REVIEW"
)

// DefaultEaseFactor is the ease assigned to freshly generated cards
const DefaultEaseFactor = 2.5

// MinEaseFactor is the floor the ease factor never drops below
const MinEaseFactor = 1.3

// Card is a spaced-repetition study unit derived from one entity.
// NextReview, EaseFactor, ReviewCount, LadderStep, IntervalDays, SuccessRate
// and State are only ever written by the scheduler.
type Card struct {
	ID              string          `json:"id"`
	EntityID        string          `json:"entity_id"`
	Question        string          `json:"question"`
	Answer          string          `json:"answer"`
	CardType        CardType        `json:"card_type"`
	SocraticSubtype SocraticSubtype `json:"socratic_subtype,omitempty"`
	Difficulty      int             `json:"difficulty"`
	State           CardState       `json:"state"`
	NextReview      time.Time       `json:"next_review"`
	ReviewCount     int             `json:"review_count"`
	LadderStep      int             `json:"ladder_step"`
	IntervalDays    int             `json:"interval_days"`
	SuccessRate     float64         `json:"success_rate"`
	EaseFactor      float64         `json:"ease_factor"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Review is one append-only review event for a card
type Review struct {
	ID           string    `json:"id"`
	CardID       string    `json:"card_id"`
	ReviewedAt   time.Time `json:"reviewed_at"`
	Quality      int       `json:"quality"`
	ResponseTime float64   `json:"response_time"`
	NextInterval int       `json:"next_interval"`
}

// Passed reports whether the review counts as a successful recall
func (r Review) Passed() bool {
	return r.Quality >= 3
}

// CardRecord is the flat export shape of a card
type CardRecord struct {
	Question   string   `json:"question" yaml:"question"`
	Answer     string   `json:"answer" yaml:"answer"`
	CardType   CardType `json:"card_type" yaml:"card_type"`
	EntityName string   `json:"entity_name" yaml:"entity_name"`
}

// Day truncates t to midnight UTC, the granularity of next_review
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RelatedEntity is one neighbor of the entity a card is generated for
type RelatedEntity struct {
	Name         string
	RelationType RelationType
	Evidence     string
	// Outgoing is true when the relation points from the card's entity
	Outgoing bool
}

// CardPrompt is the assembled context handed to a card synthesizer
type CardPrompt struct {
	EntityName      string
	EntityType      EntityType
	CardType        CardType
	SocraticSubtype SocraticSubtype
	Description     string
	Observations    []string
	Related         []RelatedEntity
	// Context is the rendered, size-limited text form of the fields above
	Context string
}

// CardContent is a synthesized question/answer pair
type CardContent struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
