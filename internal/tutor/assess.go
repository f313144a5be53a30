package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ashureev/socratic-tutor/internal/gateway"
)

type gradingResult struct {
	Level                string   `json:"level"`
	KeyMisunderstandings []string `json:"keyMisunderstandings"`
	Strengths            []string `json:"strengths"`
	AccuracyPercentage   percent  `json:"accuracyPercentage"`
	IsCorrect            bool     `json:"isCorrect"`
}

// percent accepts 65, 65.5, "65" or "65%". Anything else decodes as 0 so one
// odd field does not discard the rest of the grading.
type percent float64

func (p *percent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if f, err := n.Float64(); err == nil {
			*p = percent(f)
			return nil
		}
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*p = percent(f)
			return nil
		}
	}
	*p = 0
	return nil
}

func (g gradingResult) assessment() Assessment {
	acc := int(math.Round(float64(g.AccuracyPercentage)))
	acc = max(0, min(100, acc))
	return Assessment{
		Level:                ParseLevel(g.Level),
		KeyMisunderstandings: nonEmpty(g.KeyMisunderstandings),
		Strengths:            nonEmpty(g.Strengths),
		AccuracyPercentage:   acc,
		IsCorrect:            g.IsCorrect,
	}
}

// Assess grades a student answer about topic. The returned Assessment is
// always usable: when grading fails it is DefaultAssessment and the error
// says why.
func (e *Engine) Assess(ctx context.Context, answer, topic string) (Assessment, error) {
	raw, err := e.gen.Generate(ctx, gradingPrompt(answer, topic))
	if err != nil {
		e.logger.Warn("Assessment call failed", "topic", topic, "error", err)
		return DefaultAssessment(), fmt.Errorf("assess answer: %w", err)
	}

	var result gradingResult
	if err := gateway.ParseJSON(raw, &result); err != nil {
		e.logger.Warn("Assessment output was not JSON", "topic", topic, "raw", raw, "error", err)
		return DefaultAssessment(), fmt.Errorf("assess answer: %w", err)
	}
	return result.assessment(), nil
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
