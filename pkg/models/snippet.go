package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ContextSnippet is a retrieved passage with its provenance.
// It is read-only once decoded.
type ContextSnippet struct {
	ID         string
	Score      float64
	SourceText string
	Metadata   SnippetMetadata
}

// SnippetMetadata locates a snippet inside its source document
type SnippetMetadata struct {
	SourceFile  string   `json:"source_file,omitempty"`
	HeaderTrail []string `json:"header_trail,omitempty"`
	DocumentID  string   `json:"document_id,omitempty"`
	ChunkIndex  int      `json:"final_chunk_index"`
}

type snippetWire struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Score   float64         `json:"score"`
	Payload struct {
		Text     string          `json:"text"`
		Metadata SnippetMetadata `json:"metadata"`
	} `json:"payload"`
}

func (c *ContextSnippet) UnmarshalJSON(data []byte) error {
	var w snippetWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("failed to decode context snippet: %w", err)
	}
	id, err := decodeID(w.ID)
	if err != nil {
		return err
	}
	*c = ContextSnippet{
		ID:         id,
		Score:      w.Score,
		SourceText: w.Payload.Text,
		Metadata:   w.Payload.Metadata,
	}
	return nil
}

func (c ContextSnippet) MarshalJSON() ([]byte, error) {
	var w snippetWire
	if c.ID != "" {
		id, err := json.Marshal(c.ID)
		if err != nil {
			return nil, err
		}
		w.ID = id
	}
	w.Score = c.Score
	w.Payload.Text = c.SourceText
	w.Payload.Metadata = c.Metadata
	return json.Marshal(w)
}

// decodeID accepts a string or numeric id
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("snippet id must be a string or number, got %s", string(raw))
}

func cloneSnippets(in []ContextSnippet) []ContextSnippet {
	if in == nil {
		return nil
	}
	out := make([]ContextSnippet, len(in))
	for i, s := range in {
		s.Metadata.HeaderTrail = append([]string(nil), s.Metadata.HeaderTrail...)
		out[i] = s
	}
	return out
}
