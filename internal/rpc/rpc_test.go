package rpc

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valknut-dev/valknut/internal/vkconfig"
)

func callToolRequest(t *testing.T, params any) *mcp.CallToolRequest {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected exactly one content block, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected a TextContent block, got %T", res.Content[0])
	}
	return tc.Text
}

func TestAnalyzeRepoRequiresInitialize(t *testing.T) {
	s := NewServer(vkconfig.Default())
	res, err := s.handleAnalyzeRepo(context.Background(), callToolRequest(t, map[string]any{"paths": []string{"."}}))
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected analyze_repo before initialize to be an error result")
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if int(body["code"].(float64)) != codeNotInitialized {
		t.Errorf("expected code %d, got %v", codeNotInitialized, body["code"])
	}
}

func TestFullAnalyzeRepoLifecycle(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nfunc F() {}\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	s := NewServer(vkconfig.Default())
	if _, err := s.handleInitialize(context.Background(), callToolRequest(t, map[string]any{})); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	analyzeRes, err := s.handleAnalyzeRepo(context.Background(), callToolRequest(t, map[string]any{
		"paths": []string{dir},
	}))
	if err != nil {
		t.Fatalf("analyze_repo transport error: %v", err)
	}
	if analyzeRes.IsError {
		t.Fatalf("unexpected analyze_repo error: %s", resultText(t, analyzeRes))
	}

	var analyzeBody struct {
		ResultID string `json:"result_id"`
	}
	if err := json.Unmarshal([]byte(resultText(t, analyzeRes)), &analyzeBody); err != nil {
		t.Fatalf("decode analyze_repo response: %v", err)
	}
	if analyzeBody.ResultID == "" {
		t.Fatal("expected a non-empty result_id")
	}

	topKRes, err := s.handleGetTopK(context.Background(), callToolRequest(t, map[string]any{"result_id": analyzeBody.ResultID}))
	if err != nil {
		t.Fatalf("get_topk transport error: %v", err)
	}
	if topKRes.IsError {
		t.Fatalf("unexpected get_topk error: %s", resultText(t, topKRes))
	}

	packsRes, err := s.handleGetImpactPacks(context.Background(), callToolRequest(t, map[string]any{"result_id": analyzeBody.ResultID}))
	if err != nil {
		t.Fatalf("get_impact_packs transport error: %v", err)
	}
	if packsRes.IsError {
		t.Fatalf("unexpected get_impact_packs error: %s", resultText(t, packsRes))
	}
}

func TestGetTopKUnknownResultID(t *testing.T) {
	s := NewServer(vkconfig.Default())
	res, err := s.handleGetTopK(context.Background(), callToolRequest(t, map[string]any{"result_id": "nope"}))
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected unknown result_id to be an error result")
	}
}

func TestSetWeightsRejectsOutOfRangeWeight(t *testing.T) {
	s := NewServer(vkconfig.Default())
	res, err := s.handleSetWeights(context.Background(), callToolRequest(t, map[string]any{
		"weights": map[string]any{"complexity": 5.0},
	}))
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected an out-of-range weight to be rejected")
	}
}

func TestPingReturnsOK(t *testing.T) {
	s := NewServer(vkconfig.Default())
	res, err := s.handlePing(context.Background(), callToolRequest(t, map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("decode ping response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}
