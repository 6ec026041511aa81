package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/screenpilot/screenpilot/internal/models"
	"github.com/screenpilot/screenpilot/internal/utils"
)

// stripFence removes an optional ```/```json fence around a model response.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// parseScreeningResponse decodes the model's verdict array. Accepts a single
// object or an array; every field is coerced totally, so any malformed field
// has a defined output. Only top-level malformed JSON is a hard failure.
// IDs the model omitted come back in MissingIDs.
func parseScreeningResponse(raw string, submitted []int64) (models.ScreeningOutcome, error) {
	const op = "parseScreeningResponse"

	unwrapped := stripFence(raw)

	var rows []map[string]any
	if err := json.Unmarshal([]byte(unwrapped), &rows); err != nil {
		var single map[string]any
		if err2 := json.Unmarshal([]byte(unwrapped), &single); err2 != nil {
			return models.ScreeningOutcome{}, utils.E(utils.CodeUpstream, op,
				fmt.Sprintf("model response is not valid JSON: %s", truncateRaw(unwrapped)), err)
		}
		rows = []map[string]any{single}
	}

	out := models.ScreeningOutcome{Results: make([]models.ScreeningResult, 0, len(rows))}
	seen := make(map[int64]bool, len(rows))
	for _, row := range rows {
		res := coerceVerdict(row)
		if res.ApplicationID != 0 {
			seen[res.ApplicationID] = true
		}
		out.Results = append(out.Results, res)
	}

	for _, id := range submitted {
		if !seen[id] {
			out.MissingIDs = append(out.MissingIDs, id)
		}
	}
	return out, nil
}

// coerceVerdict maps one model object into a ScreeningResult. Unrecognized
// recommendation strings coerce to a low-confidence reject rather than
// passing through uninterpreted.
func coerceVerdict(row map[string]any) models.ScreeningResult {
	res := models.ScreeningResult{
		ApplicationID: asInt64(row["application_id"]),
		Summary:       asString(row["summary"]),
		Strengths:     asStringSlice(row["strengths"]),
		Concerns:      asStringSlice(row["concerns"]),
		Reasoning:     asString(row["reasoning"]),
	}

	rec := strings.ToLower(strings.TrimSpace(asString(row["recommendation"])))
	conf := strings.ToLower(strings.TrimSpace(asString(row["confidence"])))
	switch conf {
	case "high", "medium", "low":
	default:
		conf = "low"
	}

	switch rec {
	case "advance", "reject":
		res.Recommendation = rec
		res.Confidence = conf
	default:
		res.Recommendation = "reject"
		res.Confidence = "low"
		if rec != "" {
			res.Reasoning = strings.TrimSpace(res.Reasoning +
				fmt.Sprintf(" [unrecognized recommendation %q treated as reject]", rec))
		}
	}
	return res
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		id, _ := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return id
	case json.Number:
		id, _ := n.Int64()
		return id
	}
	return 0
}

func asInt(v any) int {
	return int(asInt64(v))
}

func truncateRaw(s string) string {
	if len(s) <= 120 {
		return s
	}
	return s[:120] + "..."
}
