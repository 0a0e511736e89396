package model

import "time"

// Document is the unit of work delivered by the crawler collaborator. It is
// treated as immutable once created.
type Document struct {
	DiscoveredAt time.Time `json:"discovered_at"`
	Source       string    `json:"source"`
	Text         string    `json:"text"`
	// ByteLength is the declared payload size; zero means unknown.
	ByteLength int `json:"byte_length,omitempty"`
	// Binary is set by ingestion adapters that detected a non-text payload.
	Binary bool `json:"-"`
}

// Size returns the declared byte length, falling back to the text length.
func (d Document) Size() int {
	if d.ByteLength > 0 {
		return d.ByteLength
	}
	return len(d.Text)
}
