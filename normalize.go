package sentimentgate

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed schema/engine_response.schema.json
var engineResponseSchema []byte

var (
	compileSchemaOnce sync.Once
	compiledSchema    *jsonschema.Schema
	compileSchemaErr  error
)

// rawResponse is the engine output format: one entry per utterance, each with
// scored sentiment and emotion labels.
type rawResponse struct {
	Overall    *rawScore      `json:"overall,omitempty"`
	Utterances []rawUtterance `json:"utterances"`
}

type rawUtterance struct {
	StartTime  float64    `json:"start_time"`
	EndTime    float64    `json:"end_time"`
	Text       string     `json:"text"`
	Sentiments []rawScore `json:"sentiments"`
	Emotions   []rawScore `json:"emotions"`
}

type rawScore struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// NeutralSentiment is reported for media without any utterance.
const NeutralSentiment = "neutral"

func responseSchema() (*jsonschema.Schema, error) {
	compileSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchema, compileSchemaErr = compiler.Compile(engineResponseSchema)
	})
	return compiledSchema, compileSchemaErr
}

// NormalizeResponse validates raw engine output and converts it to an Analysis.
// Malformed output returns an error wrapping ErrEngine.
func NormalizeResponse(body []byte) (Analysis, error) {
	schema, err := responseSchema()
	if err != nil {
		return Analysis{}, fmt.Errorf("sentimentgate: compile response schema: %w", err)
	}

	result := schema.ValidateJSON(body)
	if !result.IsValid() {
		return Analysis{}, fmt.Errorf("%w: malformed response: %v", ErrEngine, result.Errors)
	}

	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return Analysis{}, fmt.Errorf("%w: decode response: %v", ErrEngine, err)
	}

	analysis := Analysis{Segments: make([]Segment, 0, len(raw.Utterances))}
	for _, u := range raw.Utterances {
		if u.EndTime < u.StartTime {
			return Analysis{}, fmt.Errorf("%w: utterance ends before it starts (%.3f < %.3f)", ErrEngine, u.EndTime, u.StartTime)
		}
		top := topScore(u.Sentiments)
		seg := Segment{
			Start:      u.StartTime,
			End:        u.EndTime,
			Sentiment:  top.Label,
			Confidence: top.Confidence,
			Text:       u.Text,
		}
		if len(u.Emotions) > 0 {
			seg.Emotion = topScore(u.Emotions).Label
		}
		analysis.Segments = append(analysis.Segments, seg)
	}

	if raw.Overall != nil {
		analysis.OverallSentiment = raw.Overall.Label
		analysis.Confidence = raw.Overall.Confidence
		return analysis, nil
	}

	analysis.OverallSentiment, analysis.Confidence = overall(analysis.Segments)
	return analysis, nil
}

func topScore(scores []rawScore) rawScore {
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Confidence > best.Confidence {
			best = s
		}
	}
	return best
}

// overall picks the label with the highest summed segment confidence and
// reports the mean confidence of the segments carrying it. Ties resolve to
// the lexically smallest label.
func overall(segments []Segment) (string, float64) {
	if len(segments) == 0 {
		return NeutralSentiment, 0
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range segments {
		sums[s.Sentiment] += s.Confidence
		counts[s.Sentiment]++
	}

	labels := make([]string, 0, len(sums))
	for l := range sums {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best := labels[0]
	for _, l := range labels[1:] {
		if sums[l] > sums[best] {
			best = l
		}
	}
	return best, sums[best] / float64(counts[best])
}
