package clonebridge

import (
	"strings"
	"testing"
)

func TestDecodeExternalDropsOutOfBoundsMembers(t *testing.T) {
	wire := `[{"similarity":0.9,"members":[
		{"entity_id":"a","path":"x.go","lines":"1-10","similarity":0.9},
		{"entity_id":"b","path":"y.go","lines":"500-510","similarity":0.9}
	]}]`
	groups, err := DecodeExternal(strings.NewReader(wire), map[string]int{"x.go": 100, "y.go": 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected the group to be dropped once one member is out of bounds and only one remains, got %d", len(groups))
	}
}

func TestDecodeExternalKeepsValidGroup(t *testing.T) {
	wire := `[{"similarity":0.9,"members":[
		{"entity_id":"a","path":"x.go","lines":"1-10","similarity":0.9},
		{"entity_id":"b","path":"y.go","lines":"1-10","similarity":0.9}
	]}]`
	groups, err := DecodeExternal(strings.NewReader(wire), map[string]int{"x.go": 100, "y.go": 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Members) != 2 {
		t.Fatalf("expected 1 group with 2 members, got %+v", groups)
	}
}

func TestGroupInProcessFindsIdenticalWindows(t *testing.T) {
	files := []SourceFile{
		{Path: "a.go", Lines: []string{"func f() {", "  x := 1", "  y := 2", "  return x + y", "}", "", ""}},
		{Path: "b.go", Lines: []string{"func g() {", "  x := 1", "  y := 2", "  return x + y", "}", "", ""}},
	}
	groups := GroupInProcess(files, FallbackConfig{WindowLines: 3, MinSimilarity: 0.7})
	if len(groups) == 0 {
		t.Fatal("expected at least one clone group from duplicated windows")
	}
}
