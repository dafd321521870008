// ABOUTME: MCP tool definitions and registration for the muleta server
// ABOUTME: Defines JSON schemas for the ingestion, study, argument and gap tools
package mcp

import (
	"github.com/harper/muleta/internal/app"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server metadata
const (
	ServerName    = "Muleta Knowledge System"
	ServerVersion = "0.1.0"
)

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func numberProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

func stringArrayProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": description,
	}
}

// NewServer creates an MCP server with every tool registered
func NewServer(a *app.App) (*mcpserver.MCPServer, *Handlers) {
	server := mcpserver.NewMCPServer(ServerName, ServerVersion)
	return server, RegisterTools(server, a)
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, a *app.App) *Handlers {
	handlers := NewHandlers(a)

	server.AddTool(mcp.Tool{
		Name:        "ingest_text",
		Description: "Extract entities and relations from study text and merge them into the knowledge graph. Near-duplicate names are merged; unknown relation endpoints become stubs flagged for review.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text":        stringProp("Text to ingest (notes, excerpts, summaries)"),
				"source_type": stringProp("Where the text came from (default: mcp)"),
				"source_path": stringProp("Optional path or reference of the source"),
			},
			Required: []string{"text"},
		},
	}, handlers.IngestText)

	server.AddTool(mcp.Tool{
		Name:        "search_entities",
		Description: "Search entities by name prefix (accent and case insensitive) or list them by type.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query":       stringProp("Name prefix to search for"),
				"entity_type": stringProp("Entity type filter (concept, person, theory, ...)"),
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results (default: 20)",
					"default":     20,
				},
			},
		},
	}, handlers.SearchEntities)

	server.AddTool(mcp.Tool{
		Name:        "get_entity",
		Description: "Get an entity with its observations, neighboring entities and relations.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"entity": stringProp("Entity id or name"),
				"depth": map[string]interface{}{
					"type":        "number",
					"description": "Neighborhood depth in relation hops (default: 1)",
					"default":     1,
				},
			},
			Required: []string{"entity"},
		},
	}, handlers.GetEntity)

	server.AddTool(mcp.Tool{
		Name:        "generate_cards",
		Description: "Generate study cards for entities. Existing (entity, type, subtype) cards are skipped unless force is set.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"entity_ids":        stringArrayProp("Entities to generate cards for"),
				"card_types":        stringArrayProp("definition, relation, socratic, application (default: definition, relation, application)"),
				"socratic_subtypes": stringArrayProp("Required with socratic: why_important, evidence, implications, objections, relations"),
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Create cards even when one already exists",
				},
			},
			Required: []string{"entity_ids"},
		},
	}, handlers.GenerateCards)

	server.AddTool(mcp.Tool{
		Name:        "due_cards",
		Description: "List cards due for review today, most overdue first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of cards (default: 20)",
					"default":     20,
				},
			},
		},
	}, handlers.DueCards)

	server.AddTool(mcp.Tool{
		Name:        "review_card",
		Description: "Record a review of a card and schedule its next review.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"card_id":       stringProp("Card to review"),
				"quality":       numberProp("Recall quality from 1 (forgot) to 5 (perfect); 3 or more passes"),
				"response_time": numberProp("Seconds taken to answer"),
			},
			Required: []string{"card_id", "quality"},
		},
	}, handlers.ReviewCard)

	server.AddTool(mcp.Tool{
		Name:        "analyze_gaps",
		Description: "Analyze review history and graph coverage to find knowledge gaps.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.AnalyzeGaps)

	server.AddTool(mcp.Tool{
		Name:        "list_gaps",
		Description: "List recorded knowledge gaps, highest confidence first.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"include_resolved": map[string]interface{}{
					"type":        "boolean",
					"description": "Include gaps already marked resolved",
				},
			},
		},
	}, handlers.ListGaps)

	server.AddTool(mcp.Tool{
		Name:        "create_argument",
		Description: "Create an argument sequence linked to knowledge graph entities.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"title":       stringProp("Argument title"),
				"description": stringProp("Optional description"),
				"entity_ids":  stringArrayProp("Entities the argument is about"),
			},
			Required: []string{"title"},
		},
	}, handlers.CreateArgument)

	server.AddTool(mcp.Tool{
		Name:        "add_argument_node",
		Description: "Add a premise, inference, conclusion, evidence or objection node to an argument.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sequence_id": stringProp("Argument sequence id"),
				"node_type":   stringProp("premise, inference, conclusion, evidence or objection"),
				"content":     stringProp("Statement text"),
				"entity_id":   stringProp("Optional entity the node refers to"),
				"x":           numberProp("Layout x position"),
				"y":           numberProp("Layout y position"),
			},
			Required: []string{"sequence_id", "node_type", "content"},
		},
	}, handlers.AddArgumentNode)

	server.AddTool(mcp.Tool{
		Name:        "connect_argument_nodes",
		Description: "Connect two nodes of the same argument with a typed edge. Cycles are allowed; self-loops are not.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sequence_id":     stringProp("Argument sequence id"),
				"from_node_id":    stringProp("Source node"),
				"to_node_id":      stringProp("Target node"),
				"connection_type": stringProp("supports, contradicts, leads_to or evidence_for (default: supports)"),
				"strength":        numberProp("Edge strength between 0 and 1 (default: 1)"),
			},
			Required: []string{"sequence_id", "from_node_id", "to_node_id"},
		},
	}, handlers.ConnectArgumentNodes)

	server.AddTool(mcp.Tool{
		Name:        "get_argument",
		Description: "Get an argument with its nodes and connections.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"sequence_id": stringProp("Argument sequence id"),
			},
			Required: []string{"sequence_id"},
		},
	}, handlers.GetArgument)

	return handlers
}
