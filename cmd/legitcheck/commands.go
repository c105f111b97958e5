package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/legitcheck/internal/analysis"
	"github.com/kalambet/legitcheck/internal/api"
	"github.com/kalambet/legitcheck/internal/config"
	"github.com/kalambet/legitcheck/internal/forms"
	"github.com/kalambet/legitcheck/internal/investigation"
	"github.com/kalambet/legitcheck/internal/storage"
)

// --- investigation ---

var investigationCmd = &cobra.Command{
	Use:     "investigation",
	Aliases: []string{"inv"},
	Short:   "Create, inspect and run investigations",
}

type createResult struct {
	Success         bool   `json:"success"`
	InvestigationID string `json:"investigationId"`
	Message         string `json:"message"`
}

func createInvestigation(ctx context.Context, c *apiClient, path string, body map[string]any) (string, error) {
	resp, err := c.post(ctx, path, body)
	if err != nil {
		return "", err
	}
	var res createResult
	if err := decodeJSON(resp, &res); err != nil {
		return "", err
	}
	return res.InvestigationID, nil
}

var investigationCreateCmd = &cobra.Command{
	Use:   "create <target-name>",
	Short: "Create an investigation owned by the configured token",
	Long: `Create an investigation owned by the configured client token.

Examples:
  legitcheck investigation create "Acme Corp" --mode form --form company
  legitcheck investigation create "shop.example" --type website --url https://shop.example --mode portal`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		body := map[string]any{
			"target_name":        args[0],
			"investigation_mode": mode,
		}
		for flag, field := range map[string]string{
			"type":  "target_type",
			"url":   "target_url",
			"form":  "form_id",
			"email": "client_email",
			"name":  "client_name",
		} {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				body[field] = v
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		id, err := createInvestigation(cmd.Context(), client, "/api/investigations/create", body)
		if err != nil {
			return err
		}
		printSuccess("Created investigation %s", id)
		return nil
	},
}

var investigationQuickCmd = &cobra.Command{
	Use:   "quick <target-name>",
	Short: "Create an unowned portal investigation and start it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"target_name": args[0]}
		if v, _ := cmd.Flags().GetString("url"); v != "" {
			body["target_url"] = v
		}
		if v, _ := cmd.Flags().GetString("email"); v != "" {
			body["client_email"] = v
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		id, err := createInvestigation(cmd.Context(), client, "/api/investigations/quick-create", body)
		if err != nil {
			return err
		}
		printSuccess("Created investigation %s", id)

		if noTrigger, _ := cmd.Flags().GetBool("no-trigger"); noTrigger {
			return nil
		}
		if err := triggerInvestigation(cmd.Context(), client, id); err != nil {
			return err
		}
		printStep("Investigation started; check progress with: legitcheck investigation show %s", id)
		return nil
	},
}

// fetchInvestigation reads an owned record when a token is configured and the
// public route otherwise.
func fetchInvestigation(ctx context.Context, c *apiClient, id string) (investigationRow, error) {
	path := "/api/public/investigations/" + url.PathEscape(id)
	if c.token != "" {
		path = "/api/investigations/" + url.PathEscape(id)
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return investigationRow{}, err
	}
	var body struct {
		Investigation investigationRow `json:"investigation"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return investigationRow{}, err
	}
	return body.Investigation, nil
}

var investigationShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an investigation and its analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return showInvestigationJSON(cmd.Context(), client, args[0], os.Stdout)
		}
		inv, err := fetchInvestigation(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}
		writeInvestigation(os.Stdout, inv)
		return nil
	},
}

func showInvestigationJSON(ctx context.Context, c *apiClient, id string, w io.Writer) error {
	path := "/api/public/investigations/" + url.PathEscape(id)
	if c.token != "" {
		path = "/api/investigations/" + url.PathEscape(id)
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	var body map[string]any
	if err := decodeJSON(resp, &body); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(body["investigation"])
}

var investigationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your investigations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		status, _ := cmd.Flags().GetString("status")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		items, err := listInvestigations(cmd.Context(), client, limit, offset, status)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No investigations found.")
			return nil
		}
		for _, inv := range items {
			writeInvestigationLine(os.Stdout, inv)
		}
		return nil
	},
}

func listInvestigations(ctx context.Context, c *apiClient, limit, offset int, status string) ([]investigationRow, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	q.Set("offset", fmt.Sprint(offset))
	if status != "" {
		q.Set("status", status)
	}
	resp, err := c.get(ctx, "/api/investigations?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var body struct {
		Investigations []investigationRow `json:"investigations"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	return body.Investigations, nil
}

func triggerInvestigation(ctx context.Context, c *apiClient, id string) error {
	resp, err := c.post(ctx, "/api/investigate", map[string]string{"investigationId": id})
	if err != nil {
		return err
	}
	var res map[string]any
	return decodeJSON(resp, &res)
}

var investigationTriggerCmd = &cobra.Command{
	Use:   "trigger <id>",
	Short: "Start the research and analysis run of an investigation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := triggerInvestigation(cmd.Context(), client, args[0]); err != nil {
			return err
		}
		printSuccess("Investigation %s started", args[0])
		return nil
	},
}

var investigationRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Schedule a new run of a failed investigation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/investigations/"+url.PathEscape(args[0])+"/retry", nil)
		if err != nil {
			return err
		}
		var res map[string]any
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("Retry of %s scheduled", args[0])
		return nil
	},
}

var investigationPortalCmd = &cobra.Command{
	Use:   "portal <id>",
	Short: "Submit portal evidence (file URLs, text, links) and start the run",
	Long: `Submit portal evidence and start the run.

Examples:
  legitcheck investigation portal <id> --link https://reviews.example/acme
  legitcheck investigation portal <id> --file-url http://127.0.0.1:8080/files/investigation-files/1700000000000-ab12cd.png
  legitcheck investigation portal <id> --text-file ./chat-export.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portal, err := portalFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/investigations/"+url.PathEscape(args[0])+"/portal", portal)
		if err != nil {
			return err
		}
		var res map[string]any
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("Evidence submitted; investigation %s started", args[0])
		return nil
	},
}

func portalFromFlags(cmd *cobra.Command) (investigation.Portal, error) {
	var p investigation.Portal
	p.UploadedFiles, _ = cmd.Flags().GetStringSlice("file-url")
	p.SubmittedURLs, _ = cmd.Flags().GetStringSlice("link")

	text, _ := cmd.Flags().GetString("text")
	if path, _ := cmd.Flags().GetString("text-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return p, fmt.Errorf("reading text file: %w", err)
		}
		text = string(data)
	}
	if text != "" {
		p.PastedContent = &text
	}
	if p.UploadedFiles == nil && p.SubmittedURLs == nil && p.PastedContent == nil {
		return p, fmt.Errorf("one of --file-url, --link, --text or --text-file is required")
	}
	return p, nil
}

var investigationDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one of your investigations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/api/investigations/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var res map[string]any
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("Investigation %s deleted", args[0])
		return nil
	},
}

func init() {
	investigationCreateCmd.Flags().String("mode", string(storage.ModePortal), "investigation mode: form or portal")
	investigationCreateCmd.Flags().String("type", "", "target type (company, influencer, app, website, custom)")
	investigationCreateCmd.Flags().String("url", "", "target website")
	investigationCreateCmd.Flags().String("form", "", "form template id")
	investigationCreateCmd.Flags().String("email", "", "client email that receives the report")
	investigationCreateCmd.Flags().String("name", "", "client name")

	investigationQuickCmd.Flags().String("url", "", "target website")
	investigationQuickCmd.Flags().String("email", "", "client email that receives the report")
	investigationQuickCmd.Flags().Bool("no-trigger", false, "create without starting the run")

	investigationPortalCmd.Flags().StringSlice("file-url", nil, "URL of an uploaded file (repeatable)")
	investigationPortalCmd.Flags().StringSlice("link", nil, "URL submitted as evidence (repeatable)")
	investigationPortalCmd.Flags().String("text", "", "pasted evidence text")
	investigationPortalCmd.Flags().String("text-file", "", "read pasted evidence text from a file")

	investigationShowCmd.Flags().Bool("json", false, "print the raw investigation JSON")

	investigationListCmd.Flags().Int("limit", 20, "maximum number of investigations to list")
	investigationListCmd.Flags().Int("offset", 0, "number of investigations to skip")
	investigationListCmd.Flags().String("status", "", "only list this status")

	investigationCmd.AddCommand(investigationCreateCmd)
	investigationCmd.AddCommand(investigationQuickCmd)
	investigationCmd.AddCommand(investigationShowCmd)
	investigationCmd.AddCommand(investigationListCmd)
	investigationCmd.AddCommand(investigationTriggerCmd)
	investigationCmd.AddCommand(investigationPortalCmd)
	investigationCmd.AddCommand(investigationRetryCmd)
	investigationCmd.AddCommand(investigationDeleteCmd)
}

// --- local database ---

// openLocalStore opens the configured database directly.
func openLocalStore() (*storage.Store, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

var emailsCmd = &cobra.Command{
	Use:   "emails",
	Short: "Show the email audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		id, _ := cmd.Flags().GetString("investigation")

		store, err := openLocalStore()
		if err != nil {
			return err
		}
		defer store.Close()

		logs, err := store.ListEmailLogs(id, limit)
		if err != nil {
			return fmt.Errorf("reading email log: %w", err)
		}
		writeEmailLogs(os.Stdout, logs)
		return nil
	},
}

func writeEmailLogs(w io.Writer, logs []storage.EmailLog) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No emails sent.")
		return
	}
	for _, l := range logs {
		status := string(l.Status)
		color := colorYellow
		switch l.Status {
		case storage.EmailSent:
			color = colorGreen
		case storage.EmailFailed:
			color = colorRed
		}
		fmt.Fprintf(w, "%s  %-7s  %s  %s  %s\n",
			l.CreatedAt.Format("2006-01-02 15:04"),
			colorize(color, status),
			shortID(l.InvestigationID),
			l.EmailType,
			l.Recipient,
		)
		if l.Error != "" {
			fmt.Fprintf(w, "    %s\n", l.Error)
		}
	}
}

func init() {
	emailsCmd.Flags().Int("limit", 10, "maximum number of log rows")
	emailsCmd.Flags().String("investigation", "", "only show emails for this investigation")
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the local database",
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied migrations and row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLocalStore()
		if err != nil {
			return err
		}
		defer store.Close()

		versions, err := store.AppliedMigrations()
		if err != nil {
			return fmt.Errorf("reading migrations: %w", err)
		}
		printStatus("Migrations", "%v", versions)

		counts, err := store.TableStatus()
		if err != nil {
			return err
		}
		for _, c := range counts {
			printStatus(c.Table, "%d rows", c.Rows)
		}
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbStatusCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a bearer token for an owner",
	Long: `Issue a bearer token for an owner. The token is printed once; only its hash
is stored. Save it with:

  export LEGITCHECK_CLIENT_TOKEN=<token>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		label, _ := cmd.Flags().GetString("label")
		if strings.TrimSpace(owner) == "" {
			return fmt.Errorf("--owner is required")
		}

		store, err := openLocalStore()
		if err != nil {
			return err
		}
		defer store.Close()

		token, err := store.CreateToken(owner, label)
		if err != nil {
			return err
		}
		fmt.Println(token)
		printSuccess("Token issued for %s", owner)
		return nil
	},
}

func init() {
	tokenCreateCmd.Flags().String("owner", "", "owner id the token authenticates as")
	tokenCreateCmd.Flags().String("label", "", "free-form label")
	tokenCmd.AddCommand(tokenCreateCmd)
}

// --- templates ---

var templatesCmd = &cobra.Command{
	Use:   "templates [type]",
	Short: "List intake form templates, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := forms.Load()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			for _, t := range catalog.All() {
				fmt.Printf("%s  %s (%d fields)\n", colorize(colorBold, fmt.Sprintf("%-10s", t.TemplateType)), t.Title, len(t.Fields))
			}
			return nil
		}
		t, ok := catalog.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown template %q", args[0])
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	},
}

// --- score ---

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute the heuristic legitimacy score from indicator counts",
	Long: `Compute the heuristic legitimacy score: start at 5, add 0.5 per positive
indicator (at most 3), subtract 0.5 per red flag and 2 per critical flag, then
clamp to 1..10.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		positive, _ := cmd.Flags().GetInt("positive")
		red, _ := cmd.Flags().GetInt("red")
		critical, _ := cmd.Flags().GetInt("critical")
		fmt.Printf("%d/10\n", analysis.CalculateLegitimacyScore(positive, red, critical))
		return nil
	},
}

func init() {
	scoreCmd.Flags().Int("positive", 0, "number of legitimacy indicators")
	scoreCmd.Flags().Int("red", 0, "number of red flags")
	scoreCmd.Flags().Int("critical", 0, "number of critical red flags")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value, restoring its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

var configSecretCmd = &cobra.Command{
	Use:   "secret <key> <value>",
	Short: "Store a secret (llm.api_key, email.api_key, ...) in the platform secret store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetSecret(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("Stored secret %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configSecretCmd)
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the investigation tools over MCP (stdio)",
	Long: `Serve the investigation tools over MCP on stdin/stdout. Runs are scheduled
on the local job queue and processed by a running "legitcheck serve".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}
		logger := setupLogging(cfg.Log.Level)

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		catalog, err := forms.Load()
		if err != nil {
			return err
		}

		pub := newPublisher(cfg.NATS, logger)
		defer pub.Close()

		service := investigation.NewService(store, catalog, pub, cfg.Worker.MaxAttempts, logger)
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Store:   store,
			Service: service,
			Forms:   catalog,
		}, version)

		logger.Info("MCP server started (stdio transport)")
		stdio := server.NewStdioServer(mcpSrv)
		if err := stdio.Listen(cmd.Context(), os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	},
}
