package api

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xeipuuv/gojsonschema"
)

var applyRequestSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"jobId":    map[string]interface{}{"type": "string", "minLength": 1},
		"workerId": map[string]interface{}{"type": "string", "minLength": 1},
	},
	"required":             []string{"jobId", "workerId"},
	"additionalProperties": false,
}

var codeRequestSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"code": map[string]interface{}{"type": "string", "pattern": "^[0-9]{6}$"},
	},
	"required":             []string{"code"},
	"additionalProperties": false,
}

var transitionRequestSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"event": map[string]interface{}{
			"type": "string",
			"enum": []string{"SELECT", "ACCEPT", "DECLINE", "REJECT"},
		},
	},
	"required":             []string{"event"},
	"additionalProperties": false,
}

var workerRequestSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"workerId": map[string]interface{}{"type": "string", "minLength": 1},
	},
	"required":             []string{"workerId"},
	"additionalProperties": false,
}

var openSessionRequestSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"workerId": map[string]interface{}{"type": "string", "minLength": 1},
		"mode": map[string]interface{}{
			"type": "string",
			"enum": []string{"NORMAL", "RECONSIDERING_REJECTED"},
		},
	},
	"required":             []string{"workerId"},
	"additionalProperties": false,
}

var swipeRequestSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"jobId": map[string]interface{}{"type": "string", "minLength": 1},
		"direction": map[string]interface{}{
			"type": "string",
			"enum": []string{"accept", "reject"},
		},
	},
	"required":             []string{"jobId", "direction"},
	"additionalProperties": false,
}

var switchModeRequestSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"mode": map[string]interface{}{
			"type": "string",
			"enum": []string{"NORMAL", "RECONSIDERING_REJECTED"},
		},
	},
	"required":             []string{"mode"},
	"additionalProperties": false,
}

// decodeAndValidate reads the request body, checks it against the schema, and
// decodes it into dst.
func decodeAndValidate(body io.Reader, schema map[string]interface{}, dst interface{}) error {
	payload, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return fmt.Errorf("invalid request: %s", first.String())
	}

	return json.Unmarshal(payload, dst)
}
