// Package mcpadapter exposes contract indexing, scanning and question
// answering as MCP tools.
package mcpadapter

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

const (
	ToolIndexText    = "index_text"
	ToolAskContract  = "ask_contract"
	ToolScanContract = "scan_contract"
)

type Tools struct {
	analyzer ports.DocumentAnalyzer
	answerer ports.QuestionAnswerer
}

func NewTools(analyzer ports.DocumentAnalyzer, answerer ports.QuestionAnswerer) *Tools {
	return &Tools{analyzer: analyzer, answerer: answerer}
}

// NewServer registers the contract tools on a fresh MCP server.
func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"contract-analyzer",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Index a contract with index_text, then scan it for risky clauses or ask grounded questions. Answers cite clause ids in square brackets."),
	)

	s.AddTool(mcp.NewTool(ToolIndexText,
		mcp.WithDescription("Segment contract text into clauses and index them under a document id. Re-indexing replaces earlier clauses with the same ids."),
		mcp.WithString("doc_id", mcp.Required(), mcp.Description("Document identifier"), mcp.MinLength(1)),
		mcp.WithString("text", mcp.Required(), mcp.Description("Full contract text"), mcp.MinLength(1)),
		mcp.WithIdempotentHintAnnotation(true),
	), tools.indexText)

	s.AddTool(mcp.NewTool(ToolAskContract,
		mcp.WithDescription("Answer a question about an indexed contract using only its retrieved clauses."),
		mcp.WithString("doc_id", mcp.Required(), mcp.Description("Document identifier"), mcp.MinLength(1)),
		mcp.WithString("question", mcp.Required(), mcp.Description("Natural-language question"), mcp.MinLength(1)),
		mcp.WithNumber("top_k", mcp.Description("Number of clauses to retrieve (default 3)"), mcp.Min(1), mcp.Max(50)),
		mcp.WithReadOnlyHintAnnotation(true),
	), tools.askContract)

	s.AddTool(mcp.NewTool(ToolScanContract,
		mcp.WithDescription("List risk flags (unlimited liability, auto-renewal, indemnity) found in an indexed contract."),
		mcp.WithString("doc_id", mcp.Required(), mcp.Description("Document identifier"), mcp.MinLength(1)),
		mcp.WithReadOnlyHintAnnotation(true),
	), tools.scanContract)

	return s
}

func (t *Tools) indexText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("doc_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	count, err := t.analyzer.IndexText(ctx, docID, text)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"doc_id": docID, "clauses": count})
}

func (t *Tools) askContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("doc_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := t.answerer.Ask(ctx, docID, question, req.GetInt("top_k", 0))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(answer)
}

func (t *Tools) scanContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, err := req.RequireString("doc_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	flags, err := t.analyzer.Scan(ctx, docID)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"doc_id": docID, "flags": flags})
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return result, nil
}

// toolError reports domain failures inside the result so the client model can react.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrNotIndexed):
		return mcp.NewToolResultErrorFromErr("document is not indexed, call index_text first", err)
	case domain.IsKind(err, domain.ErrInvalidInput):
		return mcp.NewToolResultErrorFromErr("invalid arguments", err)
	case domain.IsKind(err, domain.ErrTemporary):
		return mcp.NewToolResultErrorFromErr("temporarily unavailable, retry later", err)
	case domain.IsKind(err, domain.ErrGeneration):
		return mcp.NewToolResultErrorFromErr("answer generation failed", err)
	default:
		return mcp.NewToolResultErrorFromErr("tool failed", err)
	}
}
