package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"placement-pipeline/internal/common/errors"
)

// Request payload schemas, validated before any state is touched.
var (
	submitApplicationSchema = mustCompile(`{
		"type": "object",
		"properties": {
			"jobId": {"type": "string", "minLength": 1}
		},
		"required": ["jobId"],
		"additionalProperties": false
	}`)

	decisionSchema = mustCompile(`{
		"type": "object",
		"properties": {
			"approve": {"type": "boolean"},
			"score": {"type": "number", "minimum": 0, "maximum": 100}
		},
		"required": ["approve"],
		"additionalProperties": false
	}`)

	releaseAssessmentSchema = mustCompile(`{
		"type": "object",
		"properties": {
			"durationMinutes": {"type": "integer", "minimum": 0, "maximum": 480}
		},
		"additionalProperties": false
	}`)

	submitAssessmentSchema = mustCompile(`{
		"type": "object",
		"properties": {
			"mcqAnswers": {"type": "array", "items": {"type": "integer", "minimum": 0}},
			"codingAnswer": {"type": "string"}
		},
		"required": ["mcqAnswers"],
		"additionalProperties": false
	}`)

	completeAIInterviewSchema = mustCompile(`{
		"type": "object",
		"properties": {
			"score": {"type": "number", "minimum": 0, "maximum": 100}
		},
		"required": ["score"],
		"additionalProperties": false
	}`)

	assignInterviewerSchema = mustCompile(`{
		"type": "object",
		"properties": {
			"round": {"type": "string", "enum": ["professional", "manager", "hr"]}
		},
		"required": ["round"],
		"additionalProperties": false
	}`)

	scheduleInterviewSchema = mustCompile(`{
		"type": "object",
		"properties": {
			"meetingLink": {"type": "string", "minLength": 1},
			"scheduledAt": {"type": "string", "minLength": 1}
		},
		"required": ["meetingLink", "scheduledAt"],
		"additionalProperties": false
	}`)

	submitFeedbackSchema = mustCompile(`{
		"type": "object",
		"properties": {
			"rating": {"type": "number", "minimum": 0, "maximum": 5},
			"recommendation": {
				"type": "string",
				"enum": ["Strongly Recommend", "Recommend", "Pass", "Maybe", "Reject", "Fail"]
			},
			"comments": {"type": "string", "maxLength": 4000}
		},
		"required": ["rating", "recommendation"],
		"additionalProperties": false
	}`)

	offerDecisionSchema = mustCompile(`{
		"type": "object",
		"properties": {
			"accept": {"type": "boolean"}
		},
		"required": ["accept"],
		"additionalProperties": false
	}`)
)

func mustCompile(schema string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return compiled
}

// decodeAndValidate reads the body, checks it against the schema and
// unmarshals it into dst. Any failure comes back as ValidationFailed.
func decodeAndValidate(r *http.Request, schema *gojsonschema.Schema, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return errors.NewValidationFailed("failed to read request body")
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.NewValidationFailed("request body is not valid JSON")
	}
	if !result.Valid() {
		descs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			descs[i] = desc.String()
		}
		return errors.NewValidationFailed(strings.Join(descs, "; "))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return errors.NewValidationFailed("failed to decode request body")
	}

	return nil
}
