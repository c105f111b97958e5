package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/legitcheck/internal/forms"
	"github.com/kalambet/legitcheck/internal/investigation"
	"github.com/kalambet/legitcheck/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	catalog, err := forms.Load()
	if err != nil {
		t.Fatalf("loading templates: %v", err)
	}
	return MCPDeps{
		Store:   store,
		Service: investigation.NewService(store, catalog, nil, 3, nil),
		Forms:   catalog,
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestNewMCPServer_Registers(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps, "test"); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_QuickCreate(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpQuickCreate(deps)

	result, err := handler(context.Background(), makeCallToolRequest("quick_create_investigation", map[string]interface{}{
		"target_name":  "  Acme Corp ",
		"target_url":   "https://acme.test",
		"client_email": "client@acme.test",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	text := toolText(t, result)
	id := strings.TrimPrefix(text, "Created investigation ")
	if id == text {
		t.Fatalf("unexpected text %q", text)
	}

	inv, err := store.GetInvestigation(id)
	if err != nil {
		t.Fatalf("GetInvestigation: %v", err)
	}
	if inv.TargetName != "Acme Corp" || inv.InvestigationMode != storage.ModePortal || inv.ClientEmail != "client@acme.test" {
		t.Errorf("record = %+v", inv)
	}
}

func TestMCPTool_QuickCreate_MissingName(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, err := mcpQuickCreate(deps)(context.Background(), makeCallToolRequest("quick_create_investigation", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for missing target_name")
	}
}

func TestMCPTool_TriggerAndGet(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	inv, err := store.CreateInvestigation(storage.Investigation{TargetName: "Acme", InvestigationMode: storage.ModePortal})
	if err != nil {
		t.Fatalf("CreateInvestigation: %v", err)
	}

	result, err := mcpTrigger(deps)(context.Background(), makeCallToolRequest("trigger_investigation", map[string]interface{}{
		"investigation_id": inv.ID,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("trigger failed: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "started") {
		t.Errorf("text = %q", toolText(t, result))
	}

	result, _ = mcpGetInvestigation(deps)(context.Background(), makeCallToolRequest("get_investigation", map[string]interface{}{
		"investigation_id": inv.ID,
	}))
	if result.IsError {
		t.Fatalf("get failed: %s", toolText(t, result))
	}
	var got storage.Investigation
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("decoding investigation: %v", err)
	}
	if got.ID != inv.ID || got.Status != storage.StatusPending {
		t.Errorf("investigation = %+v", got)
	}
}

func TestMCPTool_TriggerUnknown(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, err := mcpTrigger(deps)(context.Background(), makeCallToolRequest("trigger_investigation", map[string]interface{}{
		"investigation_id": "missing",
	}))
	if err != nil {
		t.Fatalf("tool failures must not be Go errors: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError for unknown investigation")
	}
}

func TestMCPTool_ListTemplates(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, _ := mcpListTemplates(deps)(context.Background(), makeCallToolRequest("list_form_templates", nil))

	var summaries []map[string]any
	if err := json.Unmarshal([]byte(toolText(t, result)), &summaries); err != nil {
		t.Fatalf("decoding templates: %v", err)
	}
	if len(summaries) != 5 {
		t.Fatalf("expected 5 templates, got %d", len(summaries))
	}
	if summaries[0]["template_type"] != "company" {
		t.Errorf("first template = %v", summaries[0])
	}
}

func TestMCPResource_Recent(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	for _, name := range []string{"First", "Second"} {
		if _, err := store.CreateInvestigation(storage.Investigation{TargetName: name, InvestigationMode: storage.ModePortal}); err != nil {
			t.Fatalf("CreateInvestigation: %v", err)
		}
	}

	contents, err := mcpResourceRecent(deps)(context.Background(), makeReadResourceRequest("investigations://recent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "investigations://recent" || tc.MIMEType != "application/json" {
		t.Errorf("resource = %s %s", tc.URI, tc.MIMEType)
	}

	var items []map[string]any
	if err := json.Unmarshal([]byte(tc.Text), &items); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(items) != 2 || items[0]["target_name"] != "Second" {
		t.Errorf("items = %v", items)
	}
	if _, scored := items[0]["legitimacy_score"]; scored {
		t.Error("pending investigation should carry no score")
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	create := mcpQuickCreate(deps)
	list := mcpListTemplates(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 5 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := create(context.Background(), makeCallToolRequest("quick_create_investigation", map[string]interface{}{
				"target_name": "concurrent",
			})); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := list(context.Background(), makeCallToolRequest("list_form_templates", nil)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
}
