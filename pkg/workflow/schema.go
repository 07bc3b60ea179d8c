package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vitralabs/maestro/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema validates the structure of workflow definition documents
// before they are decoded into models. Semantic checks (edge targets,
// fallback steps) happen at registration.
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "steps"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 3},
    "description": {"type": "string"},
    "timeout": {"type": ["number", "string"]},
    "error_handling": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["stop", "skip", "retry", "fallback"]},
        "fallback_step": {"type": "string"},
        "notify_on_error": {"type": "boolean"}
      }
    },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "capability"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "capability": {"type": "string", "minLength": 1},
          "input": {"type": "object"},
          "timeout": {"type": ["number", "string"]},
          "on_success": {"type": "string"},
          "on_error": {"type": "string"},
          "next_stages": {"type": "array", "items": {"type": "string"}},
          "conditions": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["field", "operator"],
              "properties": {
                "field": {"type": "string", "minLength": 1},
                "operator": {"enum": ["eq", "neq", "gt", "lt", "in", "contains"]},
                "value": {}
              }
            }
          },
          "retry_policy": {
            "type": "object",
            "required": ["max_attempts"],
            "properties": {
              "max_attempts": {"type": "integer", "minimum": 1},
              "backoff": {"enum": ["fixed", "linear", "exponential"]},
              "base_delay": {"type": ["number", "string"]},
              "max_delay": {"type": ["number", "string"]}
            }
          }
        }
      }
    }
  }
}`

// ParseDefinition validates a JSON workflow document against the embedded
// schema and decodes it.
func ParseDefinition(data []byte) (*models.Workflow, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(definitionSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, issue := range result.Errors() {
			issues = append(issues, issue.String())
		}

		return nil, fmt.Errorf("invalid workflow document: %s", strings.Join(issues, "; "))
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("failed to decode workflow document: %w", err)
	}

	return &workflow, nil
}

// LoadDirectory parses and registers every *.json definition in dir,
// returning how many were registered.
func (r *Repository) LoadDirectory(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read workflow directory: %w", err)
	}

	loaded := 0

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			return loaded, fmt.Errorf("failed to read %s: %w", path, err)
		}

		workflow, err := ParseDefinition(data)
		if err != nil {
			return loaded, fmt.Errorf("%s: %w", path, err)
		}

		if err := r.Register(workflow); err != nil {
			return loaded, fmt.Errorf("%s: %w", path, err)
		}

		loaded++
	}

	return loaded, nil
}
