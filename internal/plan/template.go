package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Placeholder names understood by name and command templates.
const (
	PlaceholderTool   = "tool"
	PlaceholderSource = "source"
	PlaceholderParam  = "param"
	PlaceholderValue  = "value"
	PlaceholderOutput = "output"
)

var (
	commandPlaceholders = map[string]bool{
		PlaceholderTool:   true,
		PlaceholderSource: true,
		PlaceholderParam:  true,
		PlaceholderValue:  true,
		PlaceholderOutput: true,
	}
	namePlaceholders = map[string]bool{
		PlaceholderParam: true,
		PlaceholderValue: true,
	}
)

// segment is either a literal run of text or a placeholder reference.
type segment struct {
	literal string
	name    string
}

// template is a parsed string with {name} placeholders.
type template struct {
	raw      string
	segments []segment
}

func parseTemplate(raw string, allowed map[string]bool) (template, error) {
	t := template{raw: raw}
	rest := raw
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return template{}, fmt.Errorf("unbalanced '}' in %q", raw)
			}
			t.segments = append(t.segments, segment{literal: rest})
			break
		}
		if strings.IndexByte(rest[:open], '}') >= 0 {
			return template{}, fmt.Errorf("unbalanced '}' in %q", raw)
		}
		if open > 0 {
			t.segments = append(t.segments, segment{literal: rest[:open]})
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return template{}, fmt.Errorf("unterminated placeholder in %q", raw)
		}
		name := strings.TrimSpace(rest[open+1 : open+closing])
		if !allowed[name] {
			return template{}, fmt.Errorf("unknown placeholder {%s} in %q (allowed: %s)", name, raw, allowedList(allowed))
		}
		t.segments = append(t.segments, segment{name: name})
		rest = rest[open+closing+1:]
	}
	return t, nil
}

func (t template) expand(vars map[string]string) string {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.name == "" {
			b.WriteString(seg.literal)
			continue
		}
		b.WriteString(vars[seg.name])
	}
	return b.String()
}

func (t template) uses(name string) bool {
	for _, seg := range t.segments {
		if seg.name == name {
			return true
		}
	}
	return false
}

func allowedList(allowed map[string]bool) string {
	names := make([]string, 0, len(allowed))
	for name := range allowed {
		names = append(names, "{"+name+"}")
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
