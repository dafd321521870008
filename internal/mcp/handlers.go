// ABOUTME: MCP tool handler implementations over the muleta core operations
// ABOUTME: Tool failures are returned as error results so the agent sees the reason
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/harper/muleta/internal/app"
	"github.com/harper/muleta/internal/core"
	"github.com/harper/muleta/internal/logger"
	"github.com/harper/muleta/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	app *app.App
	log *logger.Logger
}

// NewHandlers creates handlers over a wired App
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a, log: logger.OrNop(a.Log).Component("mcp")}
}

// jsonResult marshals v as the text content of a successful result
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorKind names the taxonomy class of err for the agent
func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrScheduling):
		return "scheduling"
	case errors.Is(err, models.ErrValidation):
		return "validation"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrExtraction):
		return "extraction"
	case errors.Is(err, models.ErrCardGeneration):
		return "card_generation"
	case errors.Is(err, models.ErrPersistence):
		return "persistence"
	default:
		return "internal"
	}
}

func (h *Handlers) fail(tool string, err error) (*mcp.CallToolResult, error) {
	kind := errorKind(err)
	h.log.Warn("tool failed", "tool", tool, "kind", kind, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("%s failed (%s): %v", tool, kind, err)), nil
}

// IngestText handles the ingest_text tool
func (h *Handlers) IngestText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text argument is required and must be a string"), nil
	}

	summary, err := h.app.Normalizer.Ingest(ctx, core.IngestRequest{
		Text:       text,
		SourceType: request.GetString("source_type", "mcp"),
		SourcePath: request.GetString("source_path", ""),
	})
	if err != nil {
		return h.fail("ingest_text", err)
	}
	return jsonResult(summary)
}

// SearchEntities handles the search_entities tool
func (h *Handlers) SearchEntities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	typeName := request.GetString("entity_type", "")
	limit := request.GetInt("limit", 20)
	if query == "" && typeName == "" {
		return mcp.NewToolResultError("query or entity_type is required"), nil
	}

	var entityType models.EntityType
	if typeName != "" {
		t, ok := models.LookupEntityType(typeName)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown entity_type %q", typeName)), nil
		}
		entityType = t
	}

	var (
		entities []models.Entity
		err      error
	)
	if query != "" {
		entities, err = h.app.Store.SearchPrefix(ctx, query, limit)
	} else {
		entities, err = h.app.Store.ListByType(ctx, entityType, limit)
	}
	if err != nil {
		return h.fail("search_entities", err)
	}

	if query != "" && entityType != "" {
		filtered := entities[:0]
		for _, e := range entities {
			if e.Type == entityType {
				filtered = append(filtered, e)
			}
		}
		entities = filtered
	}
	if entities == nil {
		entities = []models.Entity{}
	}
	return jsonResult(map[string]any{"entities": entities, "count": len(entities)})
}

// GetEntity handles the get_entity tool
func (h *Handlers) GetEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("entity")
	if err != nil {
		return mcp.NewToolResultError("entity argument (id or name) is required"), nil
	}
	depth := request.GetInt("depth", 1)

	entity, err := h.app.Store.GetEntity(ctx, ref)
	if errors.Is(err, models.ErrNotFound) {
		entity, err = h.app.Store.GetEntityByName(ctx, ref)
	}
	if err != nil {
		return h.fail("get_entity", err)
	}

	observations, err := h.app.Store.Observations(ctx, entity.ID)
	if err != nil {
		return h.fail("get_entity", err)
	}
	neighborhood, err := h.app.Store.Neighbors(ctx, entity.ID, depth)
	if err != nil {
		return h.fail("get_entity", err)
	}
	cards, err := h.app.Store.ListCards(ctx, entity.ID)
	if err != nil {
		return h.fail("get_entity", err)
	}

	return jsonResult(map[string]any{
		"entity":       entity,
		"observations": observations,
		"neighbors":    neighborhood.Entities,
		"relations":    neighborhood.Relations,
		"cards":        len(cards),
	})
}

// GenerateCards handles the generate_cards tool
func (h *Handlers) GenerateCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entityIDs := request.GetStringSlice("entity_ids", nil)
	if len(entityIDs) == 0 {
		return mcp.NewToolResultError("entity_ids argument is required and must be a non-empty array"), nil
	}

	req := core.GenerateRequest{
		EntityIDs: entityIDs,
		Force:     request.GetBool("force", false),
	}
	for _, t := range request.GetStringSlice("card_types", nil) {
		req.CardTypes = append(req.CardTypes, models.CardType(t))
	}
	for _, s := range request.GetStringSlice("socratic_subtypes", nil) {
		req.SocraticSubtypes = append(req.SocraticSubtypes, models.SocraticSubtype(s))
	}

	summary, err := h.app.Cards.Generate(ctx, req)
	if err != nil {
		return h.fail("generate_cards", err)
	}
	return jsonResult(summary)
}

// DueCards handles the due_cards tool
func (h *Handlers) DueCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	cards, err := h.app.Scheduler.Due(ctx)
	if err != nil {
		return h.fail("due_cards", err)
	}
	total := len(cards)
	if limit > 0 && len(cards) > limit {
		cards = cards[:limit]
	}
	if cards == nil {
		cards = []models.Card{}
	}
	return jsonResult(map[string]any{
		"today": h.app.Scheduler.Today().Format("2006-01-02"),
		"due":   total,
		"cards": cards,
	})
}

// ReviewCard handles the review_card tool
func (h *Handlers) ReviewCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID, err := request.RequireString("card_id")
	if err != nil {
		return mcp.NewToolResultError("card_id argument is required and must be a string"), nil
	}
	quality, err := request.RequireFloat("quality")
	if err != nil {
		return mcp.NewToolResultError("quality argument is required and must be 1-5"), nil
	}
	if quality != math.Trunc(quality) {
		return h.fail("review_card", models.NewValidationError("quality", "must be a whole number from 1 to 5"))
	}

	outcome, err := h.app.Scheduler.Review(ctx, cardID, core.ReviewInput{
		Quality:      int(quality),
		ResponseTime: request.GetFloat("response_time", 0),
	})
	if err != nil {
		return h.fail("review_card", err)
	}
	return jsonResult(map[string]any{
		"card_id":        outcome.Card.ID,
		"previous_state": outcome.PreviousState,
		"state":          outcome.Card.State,
		"interval_days":  outcome.Card.IntervalDays,
		"ease_factor":    outcome.Card.EaseFactor,
		"success_rate":   outcome.Card.SuccessRate,
		"next_review":    outcome.Card.NextReview.Format("2006-01-02"),
	})
}

// AnalyzeGaps handles the analyze_gaps tool
func (h *Handlers) AnalyzeGaps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := h.app.Gaps.Analyze(ctx)
	if err != nil {
		return h.fail("analyze_gaps", err)
	}
	return jsonResult(report)
}

// ListGaps handles the list_gaps tool
func (h *Handlers) ListGaps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gaps, err := h.app.Store.ListGaps(ctx, request.GetBool("include_resolved", false))
	if err != nil {
		return h.fail("list_gaps", err)
	}
	if gaps == nil {
		gaps = []models.KnowledgeGap{}
	}
	return jsonResult(map[string]any{"gaps": gaps, "count": len(gaps)})
}

// CreateArgument handles the create_argument tool
func (h *Handlers) CreateArgument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title argument is required and must be a string"), nil
	}
	seq, err := h.app.Arguments.CreateSequence(ctx, title,
		request.GetStringSlice("entity_ids", nil), request.GetString("description", ""))
	if err != nil {
		return h.fail("create_argument", err)
	}
	return jsonResult(seq)
}

// AddArgumentNode handles the add_argument_node tool
func (h *Handlers) AddArgumentNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seqID, err := request.RequireString("sequence_id")
	if err != nil {
		return mcp.NewToolResultError("sequence_id argument is required and must be a string"), nil
	}
	nodeType, err := request.RequireString("node_type")
	if err != nil {
		return mcp.NewToolResultError("node_type argument is required and must be a string"), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("content argument is required and must be a string"), nil
	}

	node, err := h.app.Arguments.AddNode(ctx, seqID, core.NodeInput{
		NodeType: models.NodeType(nodeType),
		Content:  content,
		EntityID: request.GetString("entity_id", ""),
		Position: models.Position{X: request.GetFloat("x", 0), Y: request.GetFloat("y", 0)},
	})
	if err != nil {
		return h.fail("add_argument_node", err)
	}
	return jsonResult(node)
}

// ConnectArgumentNodes handles the connect_argument_nodes tool
func (h *Handlers) ConnectArgumentNodes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var seqID string
	var in core.ConnectionInput
	for name, dest := range map[string]*string{
		"sequence_id":  &seqID,
		"from_node_id": &in.FromNodeID,
		"to_node_id":   &in.ToNodeID,
	} {
		v, err := request.RequireString(name)
		if err != nil {
			return mcp.NewToolResultError(name + " argument is required and must be a string"), nil
		}
		*dest = v
	}
	in.ConnectionType = models.ConnectionType(request.GetString("connection_type", string(models.ConnSupports)))
	if strength, err := request.RequireFloat("strength"); err == nil {
		in.Strength = &strength
	}

	conn, err := h.app.Arguments.Connect(ctx, seqID, in)
	if err != nil {
		return h.fail("connect_argument_nodes", err)
	}
	return jsonResult(conn)
}

// GetArgument handles the get_argument tool
func (h *Handlers) GetArgument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seqID, err := request.RequireString("sequence_id")
	if err != nil {
		return mcp.NewToolResultError("sequence_id argument is required and must be a string"), nil
	}
	graph, err := h.app.Arguments.Graph(ctx, seqID)
	if err != nil {
		return h.fail("get_argument", err)
	}
	return jsonResult(graph)
}
