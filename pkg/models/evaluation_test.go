package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestQualitativeMetricsKeepOrder(t *testing.T) {
	data := []byte(`{
		"qualitative_metrics": {
			"zeta_clarity": true,
			"alpha_relevance": false,
			"difficulty": "appropriate",
			"weight": 3,
			"error_message": null
		},
		"llm_answerability": {"is_answerable": true, "reasoning": "covered in chapter 4"}
	}`)

	var ev Evaluation
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	wantNames := []string{"zeta_clarity", "alpha_relevance", "difficulty", "weight", "error_message"}
	if len(ev.QualitativeMetrics) != len(wantNames) {
		t.Fatalf("Expected %d metrics, got %d", len(wantNames), len(ev.QualitativeMetrics))
	}
	for i, name := range wantNames {
		if ev.QualitativeMetrics[i].Name != name {
			t.Errorf("metric %d: expected %s, got %s", i, name, ev.QualitativeMetrics[i].Name)
		}
	}

	m, ok := ev.QualitativeMetrics.Get("alpha_relevance")
	if !ok || !m.IsBool() || *m.Bool {
		t.Errorf("Expected alpha_relevance=false, got %+v", m)
	}
	m, _ = ev.QualitativeMetrics.Get("difficulty")
	if m.IsBool() || m.Text != "appropriate" {
		t.Errorf("Expected text metric, got %+v", m)
	}
	m, _ = ev.QualitativeMetrics.Get("weight")
	if m.Text != "3" {
		t.Errorf("Expected numeric metric kept as text, got %+v", m)
	}
	m, _ = ev.QualitativeMetrics.Get("error_message")
	if m.IsBool() || m.Text != "" {
		t.Errorf("Expected null metric to be empty text, got %+v", m)
	}

	if ev.LLMAnswerability == nil || ev.LLMAnswerability.IsAnswerable == nil || !*ev.LLMAnswerability.IsAnswerable {
		t.Errorf("Unexpected answerability %+v", ev.LLMAnswerability)
	}

	out, err := json.Marshal(ev.QualitativeMetrics)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.HasPrefix(string(out), `{"zeta_clarity":true,"alpha_relevance":false`) {
		t.Errorf("Marshal lost ordering: %s", out)
	}
}

func TestEvaluationCloneIsDeep(t *testing.T) {
	score := 0.5
	yes := true
	ev := Evaluation{
		QSTSScore:          &score,
		QualitativeMetrics: QualitativeMetrics{{Name: "clear", Bool: &yes}},
	}

	cp := ev.Clone()
	*cp.QSTSScore = 0.9
	*cp.QualitativeMetrics[0].Bool = false

	if *ev.QSTSScore != 0.5 {
		t.Error("Clone shares score pointer")
	}
	if !*ev.QualitativeMetrics[0].Bool {
		t.Error("Clone shares metric pointer")
	}
}
