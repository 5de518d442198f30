// Package llm post-processes raw model output into usable structures.
// Models routinely wrap JSON in markdown fences, truncate it at token
// limits, or emit almost-JSON; DecodeStructured absorbs all of that so
// callers only decide what to do with a chunk that is truly unusable.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeStructured extracts the JSON object from a model response and
// unmarshals it into target. If the payload does not parse as-is it is run
// through jsonrepair before giving up.
func DecodeStructured(response string, target interface{}) error {
	payload := ExtractJSON(response)
	if payload == "" {
		return fmt.Errorf("no JSON object found in response (%d chars)", len(response))
	}

	if err := json.Unmarshal([]byte(payload), target); err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(payload)
	if repairErr != nil {
		return fmt.Errorf("response is not valid JSON and repair failed: %w", repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("failed to parse repaired JSON response: %w", err)
	}

	return nil
}

// ExtractJSON pulls the outermost JSON object out of a response that may
// wrap it in a markdown code fence or surround it with prose. Returns ""
// when no object boundary can be found.
func ExtractJSON(response string) string {
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}

	search := response
	if idx := strings.Index(response, "```json"); idx != -1 {
		search = response[idx+len("```json"):]
	} else if idx := strings.Index(response, "```"); idx != -1 {
		search = response[idx+len("```"):]
	}

	start := strings.Index(search, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(search, "}")
	if end == -1 || end < start {
		// Truncated output: take everything from the opening brace and let
		// the repair pass close the structures.
		return strings.TrimSpace(search[start:])
	}

	return search[start : end+1]
}
