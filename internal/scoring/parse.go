package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ai-ccore-projects/image-generation-sub001/internal/domain"
)

const (
	MinScore = 1
	MaxScore = 10
)

type rawVerdict struct {
	Score               json.RawMessage `json:"score"`
	Feedback            *string         `json:"feedback"`
	Suggestions         json.RawMessage `json:"suggestions"`
	Strengths           flexList        `json:"strengths"`
	AreasForImprovement flexList        `json:"areasForImprovement"`
	HelpfulKeywords     flexList        `json:"helpfulKeywords"`
	SuggestedPrompt     *string         `json:"suggestedPrompt"`
}

// flexList accepts a JSON array of strings or a single string.
type flexList []string

func (l *flexList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = flexList{s}
		return nil
	}
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(flexList, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil:
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	*l = out
	return nil
}

// parseVerdict turns a model reply into a validated verdict. score, feedback
// and suggestions are mandatory; the list fields fall back to empty lists and
// suggestedPrompt to userPrompt.
func parseVerdict(reply, userPrompt string) (*domain.ScoreVerdict, error) {
	fragment := extractJSONObject(reply)
	if fragment == "" {
		return nil, domain.MalformedVerdict("reply contains no JSON object", reply, nil)
	}
	var raw rawVerdict
	if err := json.Unmarshal([]byte(fragment), &raw); err != nil {
		return nil, domain.MalformedVerdict("reply is not valid verdict JSON", reply, err)
	}

	score, err := coerceScore(raw.Score)
	if err != nil {
		return nil, domain.MalformedVerdict("score: "+err.Error(), reply, err)
	}
	if raw.Feedback == nil || strings.TrimSpace(*raw.Feedback) == "" {
		return nil, domain.MalformedVerdict("feedback is missing", reply, nil)
	}
	suggestions, err := coerceText(raw.Suggestions)
	if err != nil {
		return nil, domain.MalformedVerdict("suggestions: "+err.Error(), reply, err)
	}

	suggested := ""
	if raw.SuggestedPrompt != nil {
		suggested = strings.TrimSpace(*raw.SuggestedPrompt)
	}
	if suggested == "" {
		suggested = strings.TrimSpace(userPrompt)
	}

	return &domain.ScoreVerdict{
		Score:               score,
		Feedback:            strings.TrimSpace(*raw.Feedback),
		Suggestions:         suggestions,
		Strengths:           cleanList(raw.Strengths),
		AreasForImprovement: cleanList(raw.AreasForImprovement),
		HelpfulKeywords:     cleanList(raw.HelpfulKeywords),
		SuggestedPrompt:     suggested,
	}, nil
}

var errMissing = errors.New("field is missing")

// coerceScore accepts a JSON number or a numeric string such as "8" or
// "8/10", rounds it and clamps it into [MinScore, MaxScore].
func coerceScore(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errMissing
	}
	var value float64
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
		if head, _, ok := strings.Cut(s, "/"); ok {
			s = strings.TrimSpace(head)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		value = parsed
	default:
		if err := json.Unmarshal(raw, &value); err != nil {
			return 0, fmt.Errorf("not a number: %s", raw)
		}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	// Clamp before converting; out-of-range float to int is undefined.
	value = math.Max(MinScore, math.Min(MaxScore, math.Round(value)))
	return int(value), nil
}

// coerceText accepts a string or a list of strings joined by newlines.
func coerceText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errMissing
	}
	var list flexList
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", err
	}
	text := strings.TrimSpace(strings.Join(cleanList(list), "\n"))
	if text == "" {
		return "", errMissing
	}
	return text, nil
}

func cleanList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// extractJSONObject strips code fences and returns the outermost {...} span.
func extractJSONObject(raw string) string {
	text := trimCodeFence(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 && !strings.Contains(trimmed[:nl], "{") {
		trimmed = trimmed[nl+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
