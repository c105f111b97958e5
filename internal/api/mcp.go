package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/legitcheck/internal/forms"
	"github.com/kalambet/legitcheck/internal/storage"
)

// MCPTrigger schedules investigation runs.
type MCPTrigger interface {
	Trigger(id string) (string, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   InvestigationStore
	Service MCPTrigger
	Forms   *forms.Catalog
}

// NewMCPServer creates an MCP server with the investigation tools and
// resources registered.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"legitcheck",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("legitcheck investigates whether a business, website or person is legitimate and produces a scored report."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("quick_create_investigation",
			mcp.WithDescription("Create an unowned portal investigation for a target."),
			mcp.WithString("target_name", mcp.Description("Name of the business, website or person"), mcp.Required()),
			mcp.WithString("target_url", mcp.Description("Website of the target")),
			mcp.WithString("client_email", mcp.Description("Address that receives the finished report")),
		),
		mcpQuickCreate(deps),
	)

	s.AddTool(
		mcp.NewTool("trigger_investigation",
			mcp.WithDescription("Start the research and analysis run of an investigation."),
			mcp.WithString("investigation_id", mcp.Description("Investigation id"), mcp.Required()),
		),
		mcpTrigger(deps),
	)

	s.AddTool(
		mcp.NewTool("get_investigation",
			mcp.WithDescription("Fetch an investigation with its status and analysis."),
			mcp.WithString("investigation_id", mcp.Description("Investigation id"), mcp.Required()),
		),
		mcpGetInvestigation(deps),
	)

	s.AddTool(
		mcp.NewTool("list_form_templates",
			mcp.WithDescription("List the intake form templates by investigation type."),
		),
		mcpListTemplates(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"investigations://recent",
			"Recent Investigations",
			mcp.WithResourceDescription("Last 10 investigations with status and score"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpQuickCreate(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("target_name")
		if err != nil || strings.TrimSpace(name) == "" {
			return mcpError("target_name is required"), nil
		}
		inv, err := deps.Store.CreateInvestigation(storage.Investigation{
			TargetName:        strings.TrimSpace(name),
			TargetURL:         strings.TrimSpace(req.GetString("target_url", "")),
			ClientEmail:       strings.TrimSpace(req.GetString("client_email", "")),
			InvestigationMode: storage.ModePortal,
			Status:            storage.StatusPending,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to create investigation: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Created investigation %s", inv.ID)), nil
	}
}

func mcpTrigger(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("investigation_id")
		if err != nil {
			return mcpError("investigation_id is required"), nil
		}
		jobID, err := deps.Service.Trigger(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to trigger %s: %v", id, err)), nil
		}
		return mcpText(fmt.Sprintf("Investigation %s started (job %s)", id, jobID)), nil
	}
}

func mcpGetInvestigation(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("investigation_id")
		if err != nil {
			return mcpError("investigation_id is required"), nil
		}
		inv, err := deps.Store.GetInvestigation(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get %s: %v", id, err)), nil
		}
		b, err := json.MarshalIndent(inv, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal investigation: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListTemplates(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Forms == nil {
			return mcpText("[]"), nil
		}
		type templateSummary struct {
			Type   string `json:"template_type"`
			Label  string `json:"option_label"`
			Title  string `json:"title"`
			Fields int    `json:"fields"`
		}
		all := deps.Forms.All()
		out := make([]templateSummary, len(all))
		for i, t := range all {
			out[i] = templateSummary{Type: t.TemplateType, Label: t.OptionLabel, Title: t.Title, Fields: len(t.Fields)}
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal templates: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		items, err := deps.Store.ListInvestigations(storage.ListFilter{Limit: 10})
		if err != nil {
			return nil, fmt.Errorf("failed to list investigations: %w", err)
		}

		type investigationSummary struct {
			ID              string         `json:"id"`
			CreatedAt       string         `json:"created_at"`
			TargetName      string         `json:"target_name"`
			Status          storage.Status `json:"status"`
			LegitimacyScore *int           `json:"legitimacy_score,omitempty"`
			Recommendation  string         `json:"recommendation,omitempty"`
		}

		summaries := make([]investigationSummary, len(items))
		for i, inv := range items {
			summaries[i] = investigationSummary{
				ID:         inv.ID,
				CreatedAt:  inv.CreatedAt.Format(time.RFC3339),
				TargetName: inv.TargetName,
				Status:     inv.Status,
			}
			if inv.Result != nil {
				score := inv.Result.LegitimacyScore
				summaries[i].LegitimacyScore = &score
				summaries[i].Recommendation = string(inv.Result.Recommendation)
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal investigations: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
