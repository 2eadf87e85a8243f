package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Render produces the screen text for a node. Placeholders of the form
// {name} are substituted from variables in a single pass; unresolved names
// render as empty string. Values are opaque strings and are never re-scanned
// for placeholders, so expansion cannot recurse.
func Render(node domain.Node, variables map[string]string) string {
	switch node.Kind {
	case domain.KindMenu:
		if node.Menu == nil {
			return ""
		}
		var b strings.Builder
		b.WriteString(interpolate(node.Menu.Title, variables))
		for _, opt := range node.Menu.Options {
			b.WriteString("\n")
			b.WriteString(fmt.Sprintf("%s. %s", opt.Key, interpolate(opt.Text, variables)))
		}
		return b.String()

	case domain.KindInput:
		if node.Input == nil {
			return ""
		}
		return interpolate(node.Input.Prompt, variables)

	case domain.KindResponse:
		if node.Response == nil {
			return ""
		}
		return interpolate(node.Response.Text, variables)

	case domain.KindEnd:
		if node.End == nil {
			return ""
		}
		return interpolate(node.End.Text, variables)

	default:
		// start and conditional nodes are never shown to the user.
		return ""
	}
}

func interpolate(template string, variables map[string]string) string {
	if !strings.Contains(template, "{") {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		return variables[name]
	})
}
