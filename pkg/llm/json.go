package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// thinkTagPattern matches a leading <think>...</think> block emitted by reasoning models.
var thinkTagPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

// ErrNoJSONObject is returned when a reply contains no JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in response")

// ExtractJSONObject returns the first complete JSON object in an LLM reply.
// Leading reasoning blocks, markdown fences and surrounding prose are ignored.
func ExtractJSONObject(response string) (json.RawMessage, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	for offset := 0; offset < len(cleaned); {
		start := strings.IndexByte(cleaned[offset:], '{')
		if start < 0 {
			break
		}
		start += offset

		var raw json.RawMessage
		dec := json.NewDecoder(strings.NewReader(cleaned[start:]))
		if err := dec.Decode(&raw); err == nil {
			return raw, nil
		}
		offset = start + 1
	}

	return nil, ErrNoJSONObject
}

// ParseJSONResponse extracts the JSON object from a reply and unmarshals it into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	raw, err := ExtractJSONObject(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return result, err
	}
	return result, nil
}
