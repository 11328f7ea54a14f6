package text

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

var fencePattern = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*\\n?(.*?)\\s*```$")

// StripCodeFence removes a surrounding ```json or ``` markdown fence, if any,
// and trims whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ExtractJSON strips an optional code fence from s and unmarshals the
// remainder into v.
func ExtractJSON(s string, v any) error {
	body := StripCodeFence(s)
	if body == "" {
		return fmt.Errorf("text: empty JSON body")
	}
	if err := sonic.UnmarshalString(body, v); err != nil {
		return fmt.Errorf("text: parse JSON: %w", err)
	}
	return nil
}
