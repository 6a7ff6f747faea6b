// File path: internal/workshop/loader.go
package workshop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/common"
	"github.com/otavio-dlx/duvenbeck-ai-insights-sub000/internal/kb"
)

// LoadCollections reads the department idea collections from a JSON file.
// The file holds an array of {department, ideas} objects as exported from
// the workshop sessions.
func LoadCollections(path string) ([]kb.Collection, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read workshop data: %w", err)
	}
	var collections []kb.Collection
	if err := json.Unmarshal(data, &collections); err != nil {
		return nil, fmt.Errorf("parse workshop data: %w", err)
	}
	common.Logger().Info("workshop: collections loaded", "path", path, "departments", len(collections))
	return collections, nil
}

// Table is a flat translation lookup keyed by dotted translation keys.
type Table map[string]string

// Lookup implements kb.Translator.
func (t Table) Lookup(key string) (string, bool) {
	text, ok := t[key]
	return text, ok
}

// LoadTranslations reads a translation table from a JSON file. Nested
// objects are flattened into dotted keys, so {"hr": {"idea1": {"idea": "x"}}}
// resolves "hr.idea1.idea".
func LoadTranslations(path string) (Table, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read translations: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse translations: %w", err)
	}
	table := make(Table)
	flatten("", raw, table)
	common.Logger().Info("workshop: translations loaded", "path", path, "keys", len(table))
	return table, nil
}

func flatten(prefix string, value map[string]interface{}, out Table) {
	for key, child := range value {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch typed := child.(type) {
		case string:
			if trimmed := strings.TrimSpace(typed); trimmed != "" {
				out[full] = typed
			}
		case map[string]interface{}:
			flatten(full, typed, out)
		}
	}
}

var _ kb.Translator = Table(nil)
