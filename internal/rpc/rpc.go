// Package rpc exposes the pipeline over the seven JSON-RPC tool methods
// spec.md §6 names, registered as MCP tools via
// github.com/modelcontextprotocol/go-sdk/mcp — the same SDK the teacher
// uses for its own tool surface (internal/mcp/server.go), with
// github.com/google/jsonschema-go/jsonschema input schemas.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valknut-dev/valknut/internal/brief"
	"github.com/valknut-dev/valknut/internal/pipeline"
	"github.com/valknut-dev/valknut/internal/resultstore"
	"github.com/valknut-dev/valknut/internal/vkconfig"
	"github.com/valknut-dev/valknut/internal/vklog"
)

// Error codes, mapped 1:1 from spec.md §6's table. −32700/−32600/−32601
// are the underlying JSON-RPC transport's own parse/invalid-request/
// method-not-found codes, raised by the SDK before a tool handler ever
// runs; the codes below are the ones application code is responsible for.
const (
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeNotInitialized = -32002
)

// Server wires the tool protocol to one Config-scoped pipeline factory
// and one process-local result registry.
type Server struct {
	mcpServer   *mcp.Server
	store       *resultstore.Store
	baseCfg     *vkconfig.Config
	initialized bool
}

// NewServer constructs the MCP server and registers every tool.
func NewServer(baseCfg *vkconfig.Config) *Server {
	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    "valknutd",
			Version: "0.1.0",
		}, nil),
		store:   resultstore.New(),
		baseCfg: baseCfg,
	}
	s.registerTools()
	return s
}

// Run blocks serving the tool protocol over stdio until the context is
// canceled or the transport closes.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(&mcp.Tool{
		Name:        "initialize",
		Description: "Negotiate protocol version and capabilities before any other tool call.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"protocolVersion": {Type: "string"},
				"clientInfo":      {Type: "object"},
				"capabilities":    {Type: "object"},
			},
		},
	}, s.handleInitialize)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        "ping",
		Description: "Liveness check.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handlePing)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        "analyze_repo",
		Description: "Run the full analysis pipeline over the given paths and return a result id.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"paths":  {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				"config": {Type: "object"},
				"top_k":  {Type: "integer"},
			},
			Required: []string{"paths"},
		},
	}, s.handleAnalyzeRepo)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        "get_topk",
		Description: "Fetch the ranked refactor briefs for a completed analysis.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"result_id": {Type: "string"}},
			Required:   []string{"result_id"},
		},
	}, s.handleGetTopK)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        "get_item",
		Description: "Fetch one entity's refactor brief by id.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"result_id": {Type: "string"},
				"entity_id": {Type: "string"},
			},
			Required: []string{"result_id", "entity_id"},
		},
	}, s.handleGetItem)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        "get_impact_packs",
		Description: "Fetch the synthesized impact packs for a completed analysis.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"result_id": {Type: "string"}},
			Required:   []string{"result_id"},
		},
	}, s.handleGetImpactPacks)

	s.mcpServer.AddTool(&mcp.Tool{
		Name:        "set_weights",
		Description: "Override the default scoring weight vector for future analyze_repo calls.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"weights": {Type: "object"}},
			Required:   []string{"weights"},
		},
	}, s.handleSetWeights)
}

// rpcError renders an application-level JSON-RPC error as the tool
// result's structured content — the SDK's own transport layer already
// owns −32700/−32600/−32601, so this is where spec.md §6's remaining
// three codes (−32602, −32603, −32002) reach the caller.
func rpcError(code int, message string) (*mcp.CallToolResult, error) {
	body, _ := json.Marshal(map[string]any{"code": code, "message": message})
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return rpcError(codeInternalError, fmt.Sprintf("marshal response: %v", err))
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(body)}}}, nil
}

func (s *Server) handleInitialize(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.initialized = true
	return jsonResult(map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]any{"name": "valknutd", "version": "0.1.0"},
	})
}

func (s *Server) handlePing(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"time": time.Now().UTC().Format(time.RFC3339), "status": "ok"})
}

type analyzeRepoParams struct {
	Paths  []string        `json:"paths"`
	Config json.RawMessage `json:"config"`
	TopK   int             `json:"top_k"`
}

func (s *Server) handleAnalyzeRepo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.initialized {
		return rpcError(codeNotInitialized, "call initialize before analyze_repo")
	}

	var params analyzeRepoParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return rpcError(codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	if len(params.Paths) == 0 {
		return rpcError(codeInvalidParams, "paths must be non-empty")
	}

	cfg := *s.baseCfg
	cfg.Roots = make([]vkconfig.RootConfig, len(params.Paths))
	for i, p := range params.Paths {
		cfg.Roots[i] = vkconfig.RootConfig{Path: p}
	}
	if params.TopK > 0 {
		cfg.Ranking.TopK = params.TopK
	}
	if len(params.Config) > 0 {
		// json.Unmarshal onto an already-populated struct only overwrites
		// fields present in the payload, so a partial override layers
		// cleanly over the base config and this call's path/top_k values.
		if err := json.Unmarshal(params.Config, &cfg); err != nil {
			return rpcError(codeInvalidParams, fmt.Sprintf("invalid config override: %v", err))
		}
	}
	vkconfig.ApplyRootDefaults(&cfg)
	if err := vkconfig.Validate(&cfg); err != nil {
		return rpcError(codeInvalidParams, err.Error())
	}

	pl, err := pipeline.New(&cfg)
	if err != nil {
		return rpcError(codeInvalidParams, err.Error())
	}

	start := time.Now()
	result, err := pl.Run(ctx)
	if err != nil {
		vklog.Warn("analyze_repo", "pipeline run failed: %v", err)
		return rpcError(codeInternalError, err.Error())
	}
	elapsed := time.Since(start)

	id := s.store.Put(&resultstore.Result{
		Config:         &cfg,
		TotalFiles:     result.TotalFiles,
		TotalEntities:  result.TotalEntities,
		ProcessingTime: elapsed,
		CompletedAt:    time.Now(),
		Ranked:         result.Ranked,
		Indexes:        result.Indexes,
		Packs:          result.Packs,
		Warnings:       result.Warnings,
	})

	return jsonResult(map[string]any{
		"result_id":       id,
		"status":          "ok",
		"total_files":     result.TotalFiles,
		"total_entities":  result.TotalEntities,
		"processing_time": elapsed.Seconds(),
	})
}

type resultIDParams struct {
	ResultID string `json:"result_id"`
}

func (s *Server) handleGetTopK(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params resultIDParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return rpcError(codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	result, ok := s.store.Get(params.ResultID)
	if !ok {
		return rpcError(codeInvalidParams, "result not found")
	}

	gen := brief.NewGenerator(result.Config.Briefs)
	items := make([]*brief.Item, 0, len(result.Ranked))
	for _, entry := range result.Ranked {
		idx := result.Indexes[entry.Entity.Language]
		items = append(items, gen.Generate(entry, idx))
	}
	return jsonResult(map[string]any{"items": items})
}

type getItemParams struct {
	ResultID string `json:"result_id"`
	EntityID string `json:"entity_id"`
}

func (s *Server) handleGetItem(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params getItemParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return rpcError(codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	result, ok := s.store.Get(params.ResultID)
	if !ok {
		return rpcError(codeInvalidParams, "result not found")
	}

	gen := brief.NewGenerator(result.Config.Briefs)
	for _, entry := range result.Ranked {
		if string(entry.Entity.ID) == params.EntityID {
			idx := result.Indexes[entry.Entity.Language]
			return jsonResult(map[string]any{"brief": gen.Generate(entry, idx)})
		}
	}
	return jsonResult(map[string]any{"brief": nil})
}

func (s *Server) handleGetImpactPacks(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params resultIDParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return rpcError(codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	result, ok := s.store.Get(params.ResultID)
	if !ok {
		return rpcError(codeInvalidParams, "result not found")
	}
	return jsonResult(map[string]any{"impact_packs": result.Packs})
}

type setWeightsParams struct {
	Weights vkconfig.WeightsConfig `json:"weights"`
}

func (s *Server) handleSetWeights(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params setWeightsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return rpcError(codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	if err := vkconfig.SetWeights(s.baseCfg, params.Weights); err != nil {
		return rpcError(codeInvalidParams, err.Error())
	}
	return jsonResult(map[string]any{"ok": true, "message": "weights updated for future analyze_repo calls"})
}
