// File path: internal/workshop/loader_test.go
package workshop

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCollections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ideas.json")
	payload := `[
		{"department": "HR", "ideas": [
			{"key": "ai-contract-review", "ideaKey": "hr.idea1.idea", "problemKey": "hr.idea1.problem", "solutionKey": "hr.idea1.solution", "owner": "Alex", "priority": "high", "finalPrio": 4.2}
		]},
		{"department": "Logistics", "ideas": []}
	]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	collections, err := LoadCollections(path)
	if err != nil {
		t.Fatalf("load collections: %v", err)
	}
	if len(collections) != 2 {
		t.Fatalf("expected 2 collections, got %d", len(collections))
	}
	if collections[0].Department != "HR" || len(collections[0].Ideas) != 1 {
		t.Fatalf("unexpected first collection: %+v", collections[0])
	}
	idea := collections[0].Ideas[0]
	if idea.Key != "ai-contract-review" || idea.FinalPrio != 4.2 {
		t.Fatalf("idea fields not decoded: %+v", idea)
	}
}

func TestLoadTranslationsFlattensNestedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "en.json")
	payload := `{
		"hr": {
			"idea1": {"idea": "Automated contract review", "problem": "Manual review is slow"}
		},
		"common": {"empty": "  "}
	}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	table, err := LoadTranslations(path)
	if err != nil {
		t.Fatalf("load translations: %v", err)
	}
	if text, ok := table.Lookup("hr.idea1.idea"); !ok || text != "Automated contract review" {
		t.Fatalf("nested key not flattened: %q %v", text, ok)
	}
	if _, ok := table.Lookup("common.empty"); ok {
		t.Fatalf("blank translations should be dropped")
	}
	if _, ok := table.Lookup("hr.idea1.missing"); ok {
		t.Fatalf("unknown key should miss")
	}
}

func TestLoadCollectionsMissingFile(t *testing.T) {
	if _, err := LoadCollections(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
