package collab

import (
	"encoding/json"
	"fmt"
	"strings"
)

// fallbackMessages is how many raw replies the unstructured summary carries.
const fallbackMessages = 3

// ExtractResult scans replies from newest to oldest and returns the first balanced
// brace-delimited span that parses as a JSON object. Driver turns are skipped. When nothing
// parses, it returns an unstructured summary of the last few replies and structured=false.
func ExtractResult(tr Transcript) (result map[string]any, structured bool) {
	turns := tr.Turns()
	var replies []Turn
	for _, t := range turns {
		if t.Speaker != RoleCoordinator {
			replies = append(replies, t)
		}
	}
	for i := len(replies) - 1; i >= 0; i-- {
		if obj, ok := FindJSONObject(replies[i].Content); ok {
			return obj, true
		}
	}

	start := len(replies) - fallbackMessages
	if start < 0 {
		start = 0
	}
	messages := make([]string, 0, len(replies)-start)
	for _, t := range replies[start:] {
		messages = append(messages, fmt.Sprintf("%s: %s", t.Speaker, t.Content))
	}
	return map[string]any{
		"analysis": "분석 완료",
		"messages": messages,
	}, false
}

// FindJSONObject returns the last top-level {...} span in s that decodes as a JSON object.
// Every opening brace is tried as a candidate, so stray quotes or braces in surrounding prose
// cannot hide a later object. A decoded object is skipped as a whole, so its nested objects
// are never returned on their own.
func FindJSONObject(s string) (map[string]any, bool) {
	var found map[string]any
	for i := 0; i < len(s); {
		next := strings.IndexByte(s[i:], '{')
		if next < 0 {
			break
		}
		i += next
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			i++
			continue
		}
		found = obj
		i += int(dec.InputOffset())
	}
	return found, found != nil
}

// hasTerminalMarker reports whether a reply ends the conversation.
func hasTerminalMarker(content string) bool {
	if strings.Contains(content, terminateMarker) {
		return true
	}
	_, ok := FindJSONObject(content)
	return ok
}
