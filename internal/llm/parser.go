package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// cleanMarkdownWrapper strips a ``` or ```json fence around a reply.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		content = content[nl+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// extractJSONObject returns the outermost {...} span in content.
func extractJSONObject(content string) string {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}

// rawClassification accepts the field spellings models commonly produce.
type rawClassification struct {
	LeakDetected     *bool               `json:"leak_detected"`
	Confidence       *float64            `json:"confidence"`
	ConfidenceScore  *float64            `json:"confidence_score"`
	Categories       []string            `json:"categories"`
	Entities         map[string][]string `json:"entities"`
	DetectedEntities map[string][]string `json:"detected_entities"`
	Severity         string              `json:"severity"`
	Rationale        string              `json:"rationale"`
	Context          string              `json:"context"`
}

// parseClassification decodes a model reply. Confidence given on a 0-100
// scale is rescaled to [0,1].
func parseClassification(content string) (ClassificationResponse, error) {
	content = extractJSONObject(cleanMarkdownWrapper(content))

	var raw rawClassification
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return ClassificationResponse{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if raw.Severity == "" {
		return ClassificationResponse{}, fmt.Errorf("no severity found in response")
	}

	resp := ClassificationResponse{
		Severity:   strings.ToLower(strings.TrimSpace(raw.Severity)),
		Rationale:  raw.Rationale,
		Categories: raw.Categories,
		Entities:   raw.Entities,
	}
	if resp.Rationale == "" {
		resp.Rationale = raw.Context
	}
	if resp.Entities == nil {
		resp.Entities = raw.DetectedEntities
	}

	switch {
	case raw.Confidence != nil:
		resp.Confidence = *raw.Confidence
	case raw.ConfidenceScore != nil:
		resp.Confidence = *raw.ConfidenceScore
	}
	if resp.Confidence > 1 {
		resp.Confidence /= 100
	}
	resp.Confidence = min(max(resp.Confidence, 0), 1)

	if raw.LeakDetected != nil {
		resp.LeakDetected = *raw.LeakDetected
	} else {
		resp.LeakDetected = len(resp.Categories) > 0
	}
	return resp, nil
}
