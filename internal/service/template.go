package service

import (
	"regexp"
)

var templateVarPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// RenderTemplate substitutes {{name}}-style placeholders with recipient
// attributes. Unknown placeholders are left verbatim so one bad template
// variable never aborts a batch.
func RenderTemplate(template string, attrs map[string]string) string {
	if len(attrs) == 0 || !templateVarPattern.MatchString(template) {
		return template
	}

	return templateVarPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := templateVarPattern.FindStringSubmatch(match)[1]
		if value, ok := attrs[name]; ok {
			return value
		}
		return match
	})
}
