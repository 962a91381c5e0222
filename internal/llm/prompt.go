package llm

import (
	"fmt"
	"strings"
)

// OutputField is one key of the JSON object a StructuredPrompt asks for
type OutputField struct {
	Name string
	// Example is a JSON fragment showing the shape, e.g. `["string"]`
	Example string
	Hint    string
}

// StructuredPrompt asks the model for a single JSON object
type StructuredPrompt struct {
	Task   string
	Fields []OutputField
	Input  string
}

// Render returns the prompt text
func (p StructuredPrompt) Render() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.Task))
	sb.WriteString("\n\nAnswer with one JSON object with exactly these keys:\n{\n")
	for i, f := range p.Fields {
		example := f.Example
		if example == "" {
			example = `"string"`
		}
		fmt.Fprintf(&sb, "  %q: %s", f.Name, example)
		if i < len(p.Fields)-1 {
			sb.WriteByte(',')
		}
		if f.Hint != "" {
			sb.WriteString("  // ")
			sb.WriteString(f.Hint)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("}\nNo markdown and no text outside the object. Leave a list empty rather than guessing.\n\n")
	sb.WriteString("<input>\n")
	sb.WriteString(strings.TrimSpace(p.Input))
	sb.WriteString("\n</input>\n")
	return sb.String()
}
