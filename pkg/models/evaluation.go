package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Evaluation holds the metrics the service attached to a generated question
type Evaluation struct {
	QSTSScore                *float64           `json:"qsts_score,omitempty"`
	LLMAnswerability         *Answerability     `json:"llm_answerability,omitempty"`
	QualitativeMetrics       QualitativeMetrics `json:"qualitative_metrics,omitempty"`
	StatusMessage            string             `json:"generation_status_message,omitempty"`
	ErrorMessage             string             `json:"error_message,omitempty"`
	RegenerationErrorMessage string             `json:"error_message_regeneration,omitempty"`
}

// Answerability is the LLM judgement of whether the question can be answered from context
type Answerability struct {
	IsAnswerable *bool  `json:"is_answerable,omitempty"`
	Reasoning    string `json:"reasoning,omitempty"`
}

// Clone returns a deep copy
func (e Evaluation) Clone() Evaluation {
	out := e
	if e.QSTSScore != nil {
		v := *e.QSTSScore
		out.QSTSScore = &v
	}
	if e.LLMAnswerability != nil {
		a := *e.LLMAnswerability
		if a.IsAnswerable != nil {
			v := *a.IsAnswerable
			a.IsAnswerable = &v
		}
		out.LLMAnswerability = &a
	}
	if e.QualitativeMetrics != nil {
		out.QualitativeMetrics = make(QualitativeMetrics, len(e.QualitativeMetrics))
		for i, m := range e.QualitativeMetrics {
			out.QualitativeMetrics[i] = m.clone()
		}
	}
	return out
}

// Metric is one named qualitative check; exactly one of Bool or Text carries the value
type Metric struct {
	Name string
	Bool *bool
	Text string
}

// IsBool reports whether the metric is a pass/fail flag
func (m Metric) IsBool() bool {
	return m.Bool != nil
}

func (m Metric) clone() Metric {
	if m.Bool != nil {
		v := *m.Bool
		m.Bool = &v
	}
	return m
}

// QualitativeMetrics keeps the server's key order, which a plain map would lose
type QualitativeMetrics []Metric

// Get returns the named metric
func (q QualitativeMetrics) Get(name string) (Metric, bool) {
	for _, m := range q {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

func (q QualitativeMetrics) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range q {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		var val []byte
		if m.Bool != nil {
			val, err = json.Marshal(*m.Bool)
		} else {
			val, err = json.Marshal(m.Text)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (q *QualitativeMetrics) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*q = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read qualitative metrics: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("qualitative metrics must be an object")
	}

	out := QualitativeMetrics{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read metric name: %w", err)
		}
		name, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to read metric %q: %w", name, err)
		}

		m := Metric{Name: name}
		var b bool
		var s string
		switch {
		case bytes.Equal(raw, []byte("null")):
		case json.Unmarshal(raw, &b) == nil:
			m.Bool = &b
		case json.Unmarshal(raw, &s) == nil:
			m.Text = s
		default:
			// numbers, objects: keep their JSON text
			m.Text = string(raw)
		}
		out = append(out, m)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to close qualitative metrics: %w", err)
	}

	*q = out
	return nil
}

// FinalResult is the accepted question together with its supporting evidence
type FinalResult struct {
	GeneratedQuestion             string           `json:"generated_question"`
	EvaluationMetrics             *Evaluation      `json:"evaluation_metrics,omitempty"`
	TotalRegenerationAttemptsMade int              `json:"total_regeneration_attempts_made"`
	GenerationContextSnippets     []ContextSnippet `json:"generation_context_snippets_metadata,omitempty"`
	AnswerabilityContextSnippets  []ContextSnippet `json:"answerability_context_snippets_metadata,omitempty"`
}

// Clone returns a deep copy
func (f FinalResult) Clone() FinalResult {
	out := f
	if f.EvaluationMetrics != nil {
		ev := f.EvaluationMetrics.Clone()
		out.EvaluationMetrics = &ev
	}
	out.GenerationContextSnippets = cloneSnippets(f.GenerationContextSnippets)
	out.AnswerabilityContextSnippets = cloneSnippets(f.AnswerabilityContextSnippets)
	return out
}
