// ABOUTME: Tests for the ArgumentBuilder
// ABOUTME: Verifies sequence validation, node linkage, self-loop and cross-sequence rejection, cycles

package core

import (
	"bytes"
	"context"
	"testing"

	"github.com/harper/muleta/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestArgumentBuilder_CreateSequence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := seedEntity(t, store, "Livre-arbítrio", "")
	b := seedEntity(t, store, "Determinismo", "")
	ab := NewArgumentBuilder(store, nil)

	seq, err := ab.CreateSequence(ctx, "  Compatibilismo  ", []string{a.ID, b.ID, a.ID}, "Hume e a liberdade")
	require.NoError(t, err)
	assert.Equal(t, "Compatibilismo", seq.Title)
	assert.Equal(t, []string{a.ID, b.ID}, seq.EntityIDs)

	stored, err := store.GetSequence(ctx, seq.ID)
	require.NoError(t, err)
	assert.Equal(t, seq.EntityIDs, stored.EntityIDs)

	_, err = ab.CreateSequence(ctx, "", nil, "")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = ab.CreateSequence(ctx, "Sem entidades", []string{"ent_missing"}, "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestArgumentBuilder_NodesAndCycles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := seedEntity(t, store, "Cogito", "")
	ab := NewArgumentBuilder(store, nil)

	seq, err := ab.CreateSequence(ctx, "Meditações", []string{e.ID}, "")
	require.NoError(t, err)

	premise, err := ab.AddNode(ctx, seq.ID, NodeInput{
		NodeType: models.NodePremise,
		Content:  "Duvido, logo penso",
		EntityID: e.ID,
		Position: models.Position{X: 10, Y: 20},
	})
	require.NoError(t, err)
	conclusion, err := ab.AddNode(ctx, seq.ID, NodeInput{NodeType: models.NodeConclusion, Content: "Penso, logo existo"})
	require.NoError(t, err)
	objection, err := ab.AddNode(ctx, seq.ID, NodeInput{NodeType: models.NodeObjection, Content: "O eu não é dado"})
	require.NoError(t, err)

	_, err = ab.Connect(ctx, seq.ID, ConnectionInput{FromNodeID: premise.ID, ToNodeID: conclusion.ID, ConnectionType: models.ConnLeadsTo})
	require.NoError(t, err)
	weak := 0.4
	_, err = ab.Connect(ctx, seq.ID, ConnectionInput{FromNodeID: objection.ID, ToNodeID: premise.ID, ConnectionType: models.ConnContradicts, Strength: &weak})
	require.NoError(t, err)
	// closing the cycle is allowed
	_, err = ab.Connect(ctx, seq.ID, ConnectionInput{FromNodeID: conclusion.ID, ToNodeID: objection.ID, ConnectionType: models.ConnSupports})
	require.NoError(t, err)

	graph, err := ab.Graph(ctx, seq.ID)
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 3)
	require.Len(t, graph.Connections, 3)
	assert.Equal(t, models.Position{X: 10, Y: 20}, graph.Nodes[0].Position)
	assert.Equal(t, e.ID, graph.Nodes[0].EntityID)
	assert.Equal(t, DefaultConnectionStrength, graph.Connections[0].Strength)
	assert.InDelta(t, 0.4, graph.Connections[1].Strength, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, ab.Export(ctx, &buf, seq.ID, "yaml"))
	var decoded models.ArgumentGraph
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Nodes, 3)
	assert.Len(t, decoded.Connections, 3)
}

func TestArgumentBuilder_RejectsInvalidConnections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ab := NewArgumentBuilder(store, nil)

	first, err := ab.CreateSequence(ctx, "Primeiro", nil, "")
	require.NoError(t, err)
	second, err := ab.CreateSequence(ctx, "Segundo", nil, "")
	require.NoError(t, err)

	a, err := ab.AddNode(ctx, first.ID, NodeInput{NodeType: models.NodePremise, Content: "A"})
	require.NoError(t, err)
	other, err := ab.AddNode(ctx, second.ID, NodeInput{NodeType: models.NodePremise, Content: "B"})
	require.NoError(t, err)

	_, err = ab.Connect(ctx, first.ID, ConnectionInput{FromNodeID: a.ID, ToNodeID: a.ID, ConnectionType: models.ConnSupports})
	assert.ErrorIs(t, err, models.ErrValidation, "self-loop")

	_, err = ab.Connect(ctx, first.ID, ConnectionInput{FromNodeID: a.ID, ToNodeID: other.ID, ConnectionType: models.ConnSupports})
	assert.ErrorIs(t, err, models.ErrValidation, "node from another sequence")

	_, err = ab.Connect(ctx, first.ID, ConnectionInput{FromNodeID: a.ID, ToNodeID: "node_missing", ConnectionType: models.ConnSupports})
	assert.ErrorIs(t, err, models.ErrNotFound)

	b, err := ab.AddNode(ctx, first.ID, NodeInput{NodeType: models.NodeEvidence, Content: "C"})
	require.NoError(t, err)
	_, err = ab.Connect(ctx, first.ID, ConnectionInput{FromNodeID: a.ID, ToNodeID: b.ID, ConnectionType: "refutes"})
	assert.ErrorIs(t, err, models.ErrValidation)
	tooStrong := 1.5
	_, err = ab.Connect(ctx, first.ID, ConnectionInput{FromNodeID: a.ID, ToNodeID: b.ID, ConnectionType: models.ConnEvidenceFor, Strength: &tooStrong})
	assert.ErrorIs(t, err, models.ErrValidation)

	graph, err := ab.Graph(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, graph.Connections)
}

func TestArgumentBuilder_RejectsInvalidNodes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ab := NewArgumentBuilder(store, nil)
	seq, err := ab.CreateSequence(ctx, "Teste", nil, "")
	require.NoError(t, err)

	_, err = ab.AddNode(ctx, seq.ID, NodeInput{NodeType: "axiom", Content: "x"})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = ab.AddNode(ctx, seq.ID, NodeInput{NodeType: models.NodePremise, Content: "  "})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = ab.AddNode(ctx, seq.ID, NodeInput{NodeType: models.NodePremise, Content: "x", EntityID: "ent_missing"})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = ab.AddNode(ctx, "seq_missing", NodeInput{NodeType: models.NodePremise, Content: "x"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}
