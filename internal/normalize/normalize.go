// Package normalize turns raw model output into validated structured values.
// It is tolerant of shape (bare list, list wrapped under a varying key name,
// or a singleton element) but strict on element validity: invalid elements
// are dropped, never repaired, and an empty result is always fatal.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/postforge/postforge/internal/logger"
	"github.com/postforge/postforge/internal/models"
)

// Error reports structurally invalid model output. Raw keeps the offending
// text for diagnostics; callers log it but must never echo it to external
// callers.
type Error struct {
	Reason string
	Raw    string
}

func (e *Error) Error() string {
	return "malformed model output: " + e.Reason
}

func malformed(reason, raw string) *Error {
	return &Error{Reason: reason, Raw: raw}
}

// ListSpec declares the target shape of a list-valued response.
type ListSpec struct {
	// CandidateKeys is the ordered list of field names to probe when the
	// model wraps its answer in an object.
	CandidateKeys []string
	// Count is the requested number of elements. More are truncated; fewer
	// is a logged shortfall, not a failure. Zero disables enforcement.
	Count int
}

// docKind tags the classified shape of a parsed document.
type docKind int

const (
	kindSequence docKind = iota
	kindMapping
	kindSingle
)

// parseDocument parses raw model text as JSON, tolerating the markdown code
// fences some models wrap their answers in.
func parseDocument(raw string) (any, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var doc any
	if err := json.Unmarshal([]byte(clean), &doc); err != nil {
		return nil, malformed(fmt.Sprintf("not valid JSON: %v", err), raw)
	}
	return doc, nil
}

// classify tags the parsed document and extracts the candidate sequence:
// a sequence is used directly, a mapping is probed for the first candidate
// key holding a sequence, and a single element becomes a singleton sequence.
func classify(doc any, spec ListSpec, isElement func(any) bool) ([]any, docKind, error) {
	switch v := doc.(type) {
	case []any:
		return v, kindSequence, nil
	case map[string]any:
		for _, key := range spec.CandidateKeys {
			if seq, ok := v[key].([]any); ok {
				return seq, kindMapping, nil
			}
		}
		if isElement(doc) {
			return []any{doc}, kindSingle, nil
		}
		return nil, 0, malformed(fmt.Sprintf("object has none of the expected keys %v", spec.CandidateKeys), "")
	default:
		if isElement(doc) {
			return []any{doc}, kindSingle, nil
		}
		return nil, 0, malformed(fmt.Sprintf("unexpected document shape %T", doc), "")
	}
}

// enforceCount applies the requested element count: truncate when over,
// log a shortfall when under, fail when nothing valid remains.
func enforceCount[T any](items []T, spec ListSpec, dropped int, raw string) ([]T, error) {
	if dropped > 0 {
		logger.Warn().Int("dropped", dropped).Msg("Dropped invalid elements from model output")
	}
	if len(items) == 0 {
		return nil, malformed("no valid elements in model output", raw)
	}
	if spec.Count > 0 {
		if len(items) > spec.Count {
			items = items[:spec.Count]
		} else if len(items) < spec.Count {
			logger.Warn().
				Int("expected", spec.Count).
				Int("got", len(items)).
				Msg("Model returned fewer elements than requested")
		}
	}
	return items, nil
}

// Strings normalizes raw model output into a list of non-empty strings.
func Strings(raw string, spec ListSpec) ([]string, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}

	isString := func(v any) bool {
		s, ok := v.(string)
		return ok && strings.TrimSpace(s) != ""
	}
	seq, _, err := classify(doc, spec, isString)
	if err != nil {
		if ne, ok := err.(*Error); ok && ne.Raw == "" {
			ne.Raw = raw
		}
		return nil, err
	}

	items := make([]string, 0, len(seq))
	dropped := 0
	for _, el := range seq {
		if !isString(el) {
			dropped++
			continue
		}
		items = append(items, strings.TrimSpace(el.(string)))
	}
	return enforceCount(items, spec, dropped, raw)
}

// PromptSlugs normalizes raw model output into prompt/slug pairs. Each
// element needs a non-empty prompt; slugs are sanitized, with a positional
// fallback when the model's slug reduces to nothing.
func PromptSlugs(raw string, spec ListSpec) ([]models.ImagePrompt, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}

	isPair := func(v any) bool {
		m, ok := v.(map[string]any)
		if !ok {
			return false
		}
		prompt, ok := m["prompt"].(string)
		return ok && strings.TrimSpace(prompt) != ""
	}
	seq, _, err := classify(doc, spec, isPair)
	if err != nil {
		if ne, ok := err.(*Error); ok && ne.Raw == "" {
			ne.Raw = raw
		}
		return nil, err
	}

	items := make([]models.ImagePrompt, 0, len(seq))
	dropped := 0
	for _, el := range seq {
		if !isPair(el) {
			dropped++
			continue
		}
		m := el.(map[string]any)
		slug, _ := m["slug"].(string)
		items = append(items, models.ImagePrompt{
			Prompt: strings.TrimSpace(m["prompt"].(string)),
			Slug:   Slug(slug, len(items)),
		})
	}
	return enforceCount(items, spec, dropped, raw)
}

// Object normalizes raw model output into a flat metadata object with the
// required string fields and string-list fields present and typed.
func Object(raw string, stringFields, listFields []string) (map[string]any, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, malformed(fmt.Sprintf("expected an object, got %T", doc), raw)
	}

	result := make(map[string]any, len(stringFields)+len(listFields))
	for _, field := range stringFields {
		s, ok := obj[field].(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, malformed(fmt.Sprintf("missing or invalid field %q", field), raw)
		}
		result[field] = strings.TrimSpace(s)
	}
	for _, field := range listFields {
		seq, ok := obj[field].([]any)
		if !ok {
			return nil, malformed(fmt.Sprintf("missing or invalid field %q", field), raw)
		}
		values := make([]string, 0, len(seq))
		dropped := 0
		for _, el := range seq {
			if s, ok := el.(string); ok && strings.TrimSpace(s) != "" {
				values = append(values, strings.TrimSpace(s))
			} else {
				dropped++
			}
		}
		if dropped > 0 {
			logger.Warn().Int("dropped", dropped).Str("field", field).Msg("Dropped invalid list values from model output")
		}
		result[field] = values
	}
	return result, nil
}
