package generative

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders returns the property names referenced by template, in order of first use.
func Placeholders(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// RenderPrompt substitutes every {name} in template with the property of that name.
//
//	RenderPrompt("Categorize genre: {title}", map[string]any{"title": "Heat"})
//	// "Categorize genre: Heat"
func RenderPrompt(template string, properties map[string]any) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := properties[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingProperty, strings.Join(missing, ", "))
	}
	return out, nil
}
