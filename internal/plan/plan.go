// Package plan expands the render templates into one invocation per
// parameter value. Expansion is pure: the same Spec always yields the same
// argument vectors, byte for byte.
package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

const (
	// DefaultCommand mirrors the Quarto command line the loop was written for.
	DefaultCommand = "{tool} render {source} -P {param}:{value} --output {output}"
	// DefaultName is the output file naming template.
	DefaultName = "penguin_report_{value}.html"
)

// NameTemplate derives an output file name from a parameter value.
type NameTemplate struct {
	tmpl template
}

// ParseName validates a file naming template. Only {value} and {param} may
// appear in file names.
func ParseName(raw string) (NameTemplate, error) {
	if strings.TrimSpace(raw) == "" {
		return NameTemplate{}, fmt.Errorf("plan: name template is empty")
	}
	t, err := parseTemplate(raw, namePlaceholders)
	if err != nil {
		return NameTemplate{}, fmt.Errorf("plan: name template: %w", err)
	}
	return NameTemplate{tmpl: t}, nil
}

// String returns the template as written.
func (n NameTemplate) String() string { return n.tmpl.raw }

// UsesValue reports whether the template varies with the parameter value.
func (n NameTemplate) UsesValue() bool { return n.tmpl.uses(PlaceholderValue) }

// Expand renders the file name for one value.
func (n NameTemplate) Expand(param string, value int) string {
	return n.tmpl.expand(map[string]string{
		PlaceholderParam: param,
		PlaceholderValue: strconv.Itoa(value),
	})
}

// CommandTemplate is a command line split into argument tokens before any
// placeholder is substituted, so a substituted value always lands inside a
// single argument and is never re-interpreted by a shell.
type CommandTemplate struct {
	raw    string
	tokens []template
}

// ParseCommand splits raw with POSIX shell word rules and validates every
// placeholder it references.
func ParseCommand(raw string) (CommandTemplate, error) {
	words, err := shellquote.Split(raw)
	if err != nil {
		return CommandTemplate{}, fmt.Errorf("plan: split command template: %w", err)
	}
	if len(words) == 0 {
		return CommandTemplate{}, fmt.Errorf("plan: command template is empty")
	}
	tokens := make([]template, 0, len(words))
	for i, word := range words {
		t, err := parseTemplate(word, commandPlaceholders)
		if err != nil {
			return CommandTemplate{}, fmt.Errorf("plan: command template word %d: %w", i, err)
		}
		tokens = append(tokens, t)
	}
	return CommandTemplate{raw: raw, tokens: tokens}, nil
}

// String returns the template as written.
func (c CommandTemplate) String() string { return c.raw }

// IsZero reports whether the template was never parsed.
func (c CommandTemplate) IsZero() bool { return len(c.tokens) == 0 }

// Expand renders the argument vector for the given placeholder values.
func (c CommandTemplate) Expand(vars Vars) []string {
	m := vars.asMap()
	args := make([]string, len(c.tokens))
	for i, tok := range c.tokens {
		args[i] = tok.expand(m)
	}
	return args
}

// Vars holds the substitution values for one invocation.
type Vars struct {
	Tool   string
	Source string
	Param  string
	Value  int
	Output string
}

func (v Vars) asMap() map[string]string {
	return map[string]string{
		PlaceholderTool:   v.Tool,
		PlaceholderSource: v.Source,
		PlaceholderParam:  v.Param,
		PlaceholderValue:  strconv.Itoa(v.Value),
		PlaceholderOutput: v.Output,
	}
}

// Spec is everything needed to expand invocations.
type Spec struct {
	Tool    string
	Source  string
	Param   string
	Values  []int
	Name    NameTemplate
	Command CommandTemplate
}

// Invocation is one planned run of the renderer.
type Invocation struct {
	// Index is the position of Value in the parameter sequence.
	Index  int
	Value  int
	Output string
	Args   []string
}

// CommandLine renders Args as a single shell-quoted string.
func (inv Invocation) CommandLine() string {
	return shellquote.Join(inv.Args...)
}

// Build expands spec into one invocation per value, in sequence order.
// Duplicate values are kept. An empty value list yields no invocations.
func Build(spec Spec) ([]Invocation, error) {
	if spec.Command.IsZero() {
		return nil, fmt.Errorf("plan: command template is required")
	}
	if spec.Name.tmpl.raw == "" {
		return nil, fmt.Errorf("plan: name template is required")
	}
	invocations := make([]Invocation, 0, len(spec.Values))
	for i, value := range spec.Values {
		output := spec.Name.Expand(spec.Param, value)
		args := spec.Command.Expand(Vars{
			Tool:   spec.Tool,
			Source: spec.Source,
			Param:  spec.Param,
			Value:  value,
			Output: output,
		})
		invocations = append(invocations, Invocation{
			Index:  i,
			Value:  value,
			Output: output,
			Args:   args,
		})
	}
	return invocations, nil
}
