// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the plasmid lint results for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gallowaylab/plasmiddb/internal/catalog"
	"github.com/gallowaylab/plasmiddb/internal/index"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
	"github.com/gallowaylab/plasmiddb/internal/report"
)

const lintRulesURI = "plasmiddb://lint-rules"

// Catalog is the build state the tools read from.
type Catalog interface {
	Current() (*catalog.View, error)
	Reload(ctx context.Context) (*catalog.View, error)
}

// Server wraps the MCP server with the plasmid tools.
type Server struct {
	mcp   *server.MCPServer
	cat   Catalog
	store index.SnapshotStore
	rules string
}

// New creates a new MCP server with all tools registered. store may be nil,
// in which case search_plasmids is not offered.
func New(cat Catalog, store index.SnapshotStore, lint plasmid.LintOptions, version string) *Server {
	s := &Server{cat: cat, store: store, rules: LintRulesDoc(lint)}

	s.mcp = server.NewMCPServer(
		"plasmiddb",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("lint_summary",
		mcp.WithDescription("Lint summary of the current build: flagged record counts and the plasmids in each violation category."),
	), s.lintSummary)

	s.mcp.AddTool(mcp.NewTool("get_plasmid",
		mcp.WithDescription("Full record of one plasmid with its errors and warnings."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Plasmid slug, e.g. pKG12")),
	), s.getPlasmid)

	s.mcp.AddTool(mcp.NewTool("owner_report",
		mcp.WithDescription("Per-owner table of flagged plasmids, as printed by the userlint command."),
		mcp.WithString("owner", mcp.Description("Owner display name (empty for all owners)")),
		mcp.WithString("show", mcp.Description("Which sections to include"), mcp.Enum("both", "errors", "warnings")),
	), s.ownerReport)

	s.mcp.AddTool(mcp.NewTool("list_alt_groups",
		mcp.WithDescription("Plasmids grouped by alternate naming authority (vendor or plasmid family)."),
	), s.listAltGroups)

	s.mcp.AddTool(mcp.NewTool("rebuild",
		mcp.WithDescription("Fetch the inventory again and re-run the linter."),
	), s.rebuild)

	if store != nil {
		s.mcp.AddTool(mcp.NewTool("search_plasmids",
			mcp.WithDescription("Full-text search over plasmid names, item names and technical details."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		), s.searchPlasmids)
	}

	s.mcp.AddResource(
		mcp.NewResource(lintRulesURI, "Lint Rules",
			mcp.WithResourceDescription("The lint rules applied to every plasmid record."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLintRulesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) lintSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := s.cat.Current()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"built_at": v.BuiltAt,
		"plasmids": len(v.Plasmids),
		"summary":  v.Summary,
	})
}

type plasmidResult struct {
	Slug        string              `json:"slug"`
	ItemName    string              `json:"item_name"`
	Name        string              `json:"name"`
	Species     string              `json:"species,omitempty"`
	Resistances []string            `json:"resistances,omitempty"`
	Types       []string            `json:"types,omitempty"`
	StockDate   string              `json:"stock_date"`
	Details     []string            `json:"details,omitempty"`
	Attachments []string            `json:"attachments,omitempty"`
	Vendor      string              `json:"vendor,omitempty"`
	AltName     string              `json:"alt_name,omitempty"`
	OwnerID     string              `json:"owner_id,omitempty"`
	Errors      []plasmid.Violation `json:"errors,omitempty"`
	Warnings    []plasmid.Violation `json:"warnings,omitempty"`
}

func (s *Server) getPlasmid(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.cat.Current()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := v.Plasmid(slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	return jsonResult(plasmidResult{
		Slug:        p.Slug,
		ItemName:    p.ItemName,
		Name:        p.Name,
		Species:     p.Species,
		Resistances: p.Resistances,
		Types:       p.Types,
		StockDate:   p.StockDate.Format("2006-01-02"),
		Details:     p.Details,
		Attachments: p.Attachments,
		Vendor:      p.Vendor,
		AltName:     p.AltName,
		OwnerID:     p.OwnerID,
		Errors:      p.Errors(),
		Warnings:    p.Warnings(),
	})
}

func (s *Server) ownerReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := s.cat.Current()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := report.Options{}
	if owner := req.GetString("owner", ""); owner != "" {
		if _, err := v.Owner(owner); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown owner: %s", owner)), nil
		}
		opts.Owners = []string{owner}
	}
	switch req.GetString("show", "both") {
	case "errors":
		opts.Show = report.ShowErrors
	case "warnings":
		opts.Show = report.ShowWarnings
	case "both", "":
	default:
		return mcp.NewToolResultError("show must be both, errors or warnings"), nil
	}
	var buf bytes.Buffer
	report.Write(&buf, v.Owners, opts)
	return mcp.NewToolResultText(buf.String()), nil
}

type altGroupResult struct {
	Key     string          `json:"key"`
	Title   string          `json:"title"`
	Members []plasmid.Ref   `json:"members"`
	Summary plasmid.Summary `json:"summary"`
}

func (s *Server) listAltGroups(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := s.cat.Current()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]altGroupResult, 0, len(v.AltGroups))
	for _, g := range v.AltGroups {
		members := make([]plasmid.Ref, 0, len(g.Members))
		for _, p := range g.Members {
			members = append(members, plasmid.Ref{Slug: p.Slug, Catalog: p.Catalog})
		}
		out = append(out, altGroupResult{Key: g.Key, Title: g.Title, Members: members, Summary: g.Summary})
	}
	return jsonResult(out)
}

func (s *Server) rebuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := s.cat.Reload(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("rebuilt: %d plasmids, %d with errors, %d with warnings",
		len(v.Plasmids), v.Summary.ErrorRecords, v.Summary.WarningRecords)), nil
}

func (s *Server) searchPlasmids(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.store.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) readLintRulesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      lintRulesURI,
			MIMEType: "text/markdown",
			Text:     s.rules,
		},
	}, nil
}
