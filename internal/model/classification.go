package model

// ClassificationResult is the AI classifier's verdict for one document.
// It is consumed by the severity scorer and never persisted on its own.
type ClassificationResult struct {
	Rationale    string                `json:"rationale"`
	Categories   []Category            `json:"categories"`
	Entities     map[Category][]string `json:"entities,omitempty"`
	Provider     string                `json:"provider,omitempty"`
	Severity     Severity              `json:"severity"`
	Confidence   float64               `json:"confidence"`
	LeakDetected bool                  `json:"leak_detected"`
	Truncated    bool                  `json:"truncated,omitempty"`
}
