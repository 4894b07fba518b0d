// Package mcp exposes the enrichment workflow as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/enrichment"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/model"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/store"
)

// Requester starts enrichment for a signal.
type Requester interface {
	RequestEnrichment(ctx context.Context, signalID string) (*enrichment.RequestResult, error)
}

// Server wraps an MCPServer with the enrichment components.
type Server struct {
	mcp       *mcpserver.MCPServer
	store     store.Store
	requester Requester
	checker   enrichment.StatusChecker
}

// NewServer registers the enrichment tools.
func NewServer(st store.Store, req Requester, checker enrichment.StatusChecker, version string) *Server {
	s := &Server{store: st, requester: req, checker: checker}

	srv := mcpserver.NewMCPServer("gourmet-enrichment", version, mcpserver.WithToolCapabilities(true))
	srv.AddTool(requestEnrichmentTool(), s.handleRequestEnrichment)
	srv.AddTool(checkStatusTool(), s.handleCheckStatus)
	srv.AddTool(listContactsTool(), s.handleListContacts)

	s.mcp = srv
	return s
}

// MCPServer returns the underlying server for ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

func requestEnrichmentTool() mcpgo.Tool {
	return mcpgo.NewTool("request_enrichment",
		mcpgo.WithDescription("Find decision-maker contacts for a signal's company. Starts an asynchronous research task or answers synchronously from a fallback provider."),
		mcpgo.WithString("signal_id", mcpgo.Required(), mcpgo.Description("ID of the signal to enrich")),
	)
}

func checkStatusTool() mcpgo.Tool {
	return mcpgo.NewTool("check_enrichment_status",
		mcpgo.WithDescription("Check an enrichment. Imports contacts when the research task has finished."),
		mcpgo.WithString("signal_id", mcpgo.Required(), mcpgo.Description("ID of the enriched signal")),
		mcpgo.WithBoolean("force", mcpgo.Description("Re-read the task output even when the enrichment is already completed")),
	)
}

func listContactsTool() mcpgo.Tool {
	return mcpgo.NewTool("list_contacts",
		mcpgo.WithDescription("List the contacts stored for a signal, highest priority first."),
		mcpgo.WithString("signal_id", mcpgo.Required(), mcpgo.Description("ID of the signal")),
	)
}

// HandleRequestEnrichment is exported for tests that bypass the transport.
func (s *Server) HandleRequestEnrichment(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleRequestEnrichment(ctx, req)
}

// HandleCheckStatus is exported for tests that bypass the transport.
func (s *Server) HandleCheckStatus(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleCheckStatus(ctx, req)
}

// HandleListContacts is exported for tests that bypass the transport.
func (s *Server) HandleListContacts(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListContacts(ctx, req)
}

func (s *Server) handleRequestEnrichment(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("signal_id", ""))
	if id == "" {
		return mcpgo.NewToolResultError("signal_id is required"), nil
	}

	res, err := s.requester.RequestEnrichment(ctx, id)
	if err != nil {
		return toolError("request_enrichment", id, err), nil
	}

	out := map[string]any{
		"accepted": res.Accepted,
		"message":  res.Message,
		"status":   res.Status,
	}
	if res.Source != "" {
		out["source"] = res.Source
	}
	if res.Handle != nil {
		out["manus_task_id"] = res.Handle.TaskID
		out["manus_task_url"] = res.Handle.TaskURL
	}
	if res.ContactsCount != nil {
		out["contacts_count"] = *res.ContactsCount
	}
	return resultJSON(out)
}

func (s *Server) handleCheckStatus(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("signal_id", ""))
	if id == "" {
		return mcpgo.NewToolResultError("signal_id is required"), nil
	}

	res, err := s.checker.CheckStatus(ctx, id, req.GetBool("force", false))
	if err != nil {
		return toolError("check_enrichment_status", id, err), nil
	}

	out := map[string]any{
		"status":  res.Status,
		"message": res.Message,
	}
	if res.ContactsCount != nil {
		out["contacts_count"] = *res.ContactsCount
	}
	if res.InsertedCount != nil {
		out["inserted_count"] = *res.InsertedCount
	}
	if res.Error != "" {
		out["error"] = res.Error
	}
	if res.RemoteStatus != "" {
		out["remote_status"] = res.RemoteStatus
	}
	if res.Company != nil && *res.Company != (model.CompanyInfo{}) {
		out["company_info"] = res.Company
	}
	return resultJSON(out)
}

func (s *Server) handleListContacts(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("signal_id", ""))
	if id == "" {
		return mcpgo.NewToolResultError("signal_id is required"), nil
	}

	contacts, err := s.store.ListContacts(ctx, id)
	if err != nil {
		return toolError("list_contacts", id, err), nil
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	return resultJSON(map[string]any{"signal_id": id, "count": len(contacts), "contacts": contacts})
}

// toolError reports failures as tool results so the client sees the reason.
func toolError(tool, id string, err error) *mcpgo.CallToolResult {
	if errors.Is(err, enrichment.ErrNotFound) {
		return mcpgo.NewToolResultErrorf("signal %s not found", id)
	}
	zap.L().Error("mcp: tool failed", zap.String("tool", tool), zap.String("signal_id", id), zap.Error(err))
	return mcpgo.NewToolResultErrorf("%s failed: %s", tool, err.Error())
}

func resultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "mcp: marshal result")
	}
	return mcpgo.NewToolResultText(string(b)), nil
}
