// Package prompts holds the prompt templates sent to the language models.
package prompts

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\.([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// PromptTemplate is a string with `{{.name}}` placeholders.
type PromptTemplate struct {
	Template string
}

func NewPromptTemplate(template string) PromptTemplate {
	return PromptTemplate{Template: template}
}

// Format substitutes the placeholders named in vars. Unknown placeholders are
// left untouched.
func (p PromptTemplate) Format(vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(p.Template, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}

// Instructions returns the text before the first placeholder, trimmed.
func (p PromptTemplate) Instructions() string {
	if loc := placeholder.FindStringIndex(p.Template); loc != nil {
		head := p.Template[:loc[0]]
		if i := strings.LastIndex(head, "\n\n"); i >= 0 {
			head = head[:i]
		}
		return strings.TrimSpace(head)
	}
	return strings.TrimSpace(p.Template)
}
