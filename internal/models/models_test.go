// ABOUTME: Tests for the domain types, label parsing and the error taxonomy
// ABOUTME: Covers type aliases, relation validation, day truncation and errors.Is matching
package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType(t *testing.T) {
	tests := []struct {
		in   string
		want EntityType
		ok   bool
	}{
		{"concept", EntityConcept, true},
		{"Conceito", EntityConcept, true},
		{"PESSOA", EntityPerson, true},
		{"  teoria ", EntityTheory, true},
		{"Método", EntityMethod, true},
		{"spaceship", EntityUnknown, true},
		{"", "", false},
		{"   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseEntityType(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupEntityTypeRejectsUnknownLabels(t *testing.T) {
	got, ok := LookupEntityType("obra")
	require.True(t, ok)
	assert.Equal(t, EntityWork, got)

	_, ok = LookupEntityType("spaceship")
	assert.False(t, ok)
	_, ok = LookupEntityType("")
	assert.False(t, ok)
}

func TestParseRelationType(t *testing.T) {
	assert.Equal(t, RelCauses, ParseRelationType("causes"))
	assert.Equal(t, RelCauses, ParseRelationType("Leads To"))
	assert.Equal(t, RelSupports, ParseRelationType("apoia"))
	assert.Equal(t, RelRelatedTo, ParseRelationType("inspired"))
	assert.Equal(t, RelRelatedTo, ParseRelationType(""))
}

func TestRelationValidate(t *testing.T) {
	valid := Relation{FromEntityID: "ent_a", ToEntityID: "ent_b", Type: RelPartOf, Strength: 0.5}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *Relation)
		field  string
	}{
		{"missing from", func(r *Relation) { r.FromEntityID = "" }, "from_entity_id"},
		{"self relation", func(r *Relation) { r.ToEntityID = r.FromEntityID }, "to_entity_id"},
		{"unknown type", func(r *Relation) { r.Type = "admires" }, "type"},
		{"strength above one", func(r *Relation) { r.Strength = 1.5 }, "strength"},
		{"negative strength", func(r *Relation) { r.Strength = -0.1 }, "strength"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, CardSocratic.Valid())
	assert.False(t, CardType("cloze").Valid())
	assert.True(t, SocraticSubtype("objections").Valid())
	assert.False(t, SocraticSubtype("").Valid())
	assert.True(t, GapMissingRelations.Valid())
	assert.False(t, GapType("boredom").Valid())
	assert.True(t, NodeObjection.Valid())
	assert.False(t, NodeType("axiom").Valid())
	assert.True(t, ConnEvidenceFor.Valid())
	assert.False(t, ConnectionType("refutes").Valid())
}

func TestReviewPassed(t *testing.T) {
	assert.False(t, Review{Quality: 2}.Passed())
	assert.True(t, Review{Quality: 3}.Passed())
	assert.True(t, Review{Quality: 5}.Passed())
}

func TestDayTruncatesToUTCMidnight(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	late := time.Date(2026, 3, 9, 22, 15, 0, 0, saoPaulo)

	day := Day(late)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), day)
	assert.Equal(t, day, Day(day))
}

func TestErrorTaxonomy(t *testing.T) {
	err := fmt.Errorf("ingesting: %w", NewValidationError("text", "must be at least 10 characters"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "ingesting: invalid text: must be at least 10 characters", err.Error())

	missing := NotFound("card", "card_123")
	assert.ErrorIs(t, missing, ErrNotFound)
	assert.Equal(t, `card "card_123": not found`, missing.Error())
}
