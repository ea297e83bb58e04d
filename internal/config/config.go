// internal/config/config.go
//
// This package handles configuration and the .renderloop directory.
// A project can run renderloop without any config file; the defaults render
// index.qmd with Quarto for 2007, 2008 and 2009.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/render-loop/internal/plan"
)

const (
	// StateDir is the name of the directory renderloop keeps next to the source document
	StateDir = ".renderloop"

	// ToolEnv overrides the configured renderer executable
	ToolEnv = "RENDERLOOP_TOOL"
)

const defaultProjectConfigYAML = `# renderloop project configuration
version: 1

# Renderer executable, resolved through PATH. RENDERLOOP_TOOL overrides it.
tool: quarto

# Source document passed to the renderer.
source: index.qmd

# Parameter name and the values to render, in order.
param: year
values:
  - 2007
  - 2008
  - 2009

# Output file name. Placeholders: {value}, {param}.
output: penguin_report_{value}.html

# Command line. Placeholders: {tool}, {source}, {param}, {value}, {output}.
# The line is split into arguments before substitution; no shell is involved.
command: "{tool} render {source} -P {param}:{value} --output {output}"

# Exit non-zero when any render fails. Off by default: failures never stop the loop.
strict: false

# Show the renderer's own output on the terminal.
stream_output: true
`

// RenderConfig models .renderloop/config.yaml.
type RenderConfig struct {
	Version      int    `yaml:"version"`
	Tool         string `yaml:"tool"`
	Source       string `yaml:"source"`
	Param        string `yaml:"param"`
	Values       []int  `yaml:"values"`
	Output       string `yaml:"output"`
	Command      string `yaml:"command"`
	Strict       bool   `yaml:"strict"`
	StreamOutput *bool  `yaml:"stream_output,omitempty"`
}

// Config holds the runtime configuration for renderloop.
type Config struct {
	// ProjectDir is where renders run and output files land
	ProjectDir string

	// StateDir is ProjectDir/.renderloop
	StateDir string

	// Path is the config file that was loaded, empty when defaults are in use
	Path string

	Render RenderConfig

	// ToolOverride comes from RENDERLOOP_TOOL. It replaces Render.Tool when
	// planning and is never written back by Save.
	ToolOverride string
}

// InitDir creates the .renderloop directory structure in projectDir and
// writes the default config file if none exists yet.
//
// Structure created:
// .renderloop/
// ├── config.yaml
// └── logs/
func InitDir(projectDir string) error {
	if err := EnsureStateDir(projectDir); err != nil {
		return err
	}
	return ensureProjectConfig(filepath.Join(projectDir, StateDir, "config.yaml"))
}

// EnsureStateDir creates .renderloop/logs without touching the config file.
func EnsureStateDir(projectDir string) error {
	if err := os.MkdirAll(filepath.Join(projectDir, StateDir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: ensure state dir: %w", err)
	}
	return nil
}

// NewConfig loads .renderloop/config.yaml from projectDir, falling back to
// defaults when the file is missing.
func NewConfig(projectDir string) (*Config, error) {
	cfg := newConfig(projectDir)
	if err := cfg.loadRenderConfig(cfg.ProjectConfigPath(), true); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// Load reads an explicit config file. Unlike NewConfig, the file must exist.
func Load(projectDir, path string) (*Config, error) {
	cfg := newConfig(projectDir)
	if err := cfg.loadRenderConfig(path, false); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func newConfig(projectDir string) *Config {
	return &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, StateDir),
		Render:     defaultRenderConfig(),
	}
}

// ProjectConfigPath returns the default on-disk location for the config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// HistoryPath returns the path to the run history file
func (c *Config) HistoryPath() string {
	return filepath.Join(c.StateDir, "history.log")
}

// StreamOutput reports whether the renderer's output should reach the terminal.
func (c *Config) StreamOutput() bool {
	if c.Render.StreamOutput == nil {
		return true
	}
	return *c.Render.StreamOutput
}

// Tool returns the renderer executable for this run.
func (c *Config) Tool() string {
	if c.ToolOverride != "" {
		return c.ToolOverride
	}
	return c.Render.Tool
}

// Spec converts the render configuration into an expansion spec.
func (c *Config) Spec() (plan.Spec, error) {
	name, err := plan.ParseName(c.Render.Output)
	if err != nil {
		return plan.Spec{}, fmt.Errorf("config: output: %w", err)
	}
	command, err := plan.ParseCommand(c.Render.Command)
	if err != nil {
		return plan.Spec{}, fmt.Errorf("config: command: %w", err)
	}
	values := make([]int, len(c.Render.Values))
	copy(values, c.Render.Values)
	return plan.Spec{
		Tool:    c.Tool(),
		Source:  c.Render.Source,
		Param:   c.Render.Param,
		Values:  values,
		Name:    name,
		Command: command,
	}, nil
}

// Override applies key=value overrides from the command line and validates
// the result. Keys match the YAML field names.
func (c *Config) Override(sets map[string]string) error {
	if len(sets) == 0 {
		return nil
	}
	updated := c.Render
	toolSet := false
	for key, value := range sets {
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "tool":
			updated.Tool = value
			toolSet = true
		case "source":
			updated.Source = value
		case "param":
			updated.Param = value
		case "output":
			updated.Output = value
		case "command":
			updated.Command = value
		default:
			return fmt.Errorf("config: unknown override %q", key)
		}
	}
	updated.normalize()
	if err := updated.validate(); err != nil {
		return fmt.Errorf("config: override: %w", err)
	}
	c.Render = updated
	if toolSet {
		c.ToolOverride = ""
	}
	return nil
}

func (c *Config) loadRenderConfig(path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := RenderConfig{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults(hasValuesKey(data))
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}

	c.Render = parsed
	c.Path = path
	return nil
}

func (c *Config) applyEnv() {
	if tool := strings.TrimSpace(os.Getenv(ToolEnv)); tool != "" {
		c.ToolOverride = tool
	}
}

func defaultRenderConfig() RenderConfig {
	return RenderConfig{
		Version: 1,
		Tool:    "quarto",
		Source:  "index.qmd",
		Param:   "year",
		Values:  []int{2007, 2008, 2009},
		Output:  plan.DefaultName,
		Command: plan.DefaultCommand,
	}
}

// applyDefaults fills fields the file left out. An explicit empty values list
// is kept so a config can plan zero renders.
func (rc *RenderConfig) applyDefaults(valuesSet bool) {
	def := defaultRenderConfig()
	if rc.Version == 0 {
		rc.Version = def.Version
	}
	if strings.TrimSpace(rc.Tool) == "" {
		rc.Tool = def.Tool
	}
	if strings.TrimSpace(rc.Source) == "" {
		rc.Source = def.Source
	}
	if strings.TrimSpace(rc.Param) == "" {
		rc.Param = def.Param
	}
	if !valuesSet {
		rc.Values = def.Values
	}
	if strings.TrimSpace(rc.Output) == "" {
		rc.Output = def.Output
	}
	if strings.TrimSpace(rc.Command) == "" {
		rc.Command = def.Command
	}
}

func (rc *RenderConfig) normalize() {
	rc.Tool = strings.TrimSpace(rc.Tool)
	rc.Source = strings.TrimSpace(rc.Source)
	rc.Param = strings.TrimSpace(rc.Param)
	rc.Output = strings.TrimSpace(rc.Output)
	rc.Command = strings.TrimSpace(rc.Command)
	if rc.Values == nil {
		rc.Values = []int{}
	}
}

func (rc *RenderConfig) validate() error {
	if rc.Version != 1 {
		return fmt.Errorf("unsupported config version %d", rc.Version)
	}
	if rc.Tool == "" {
		return fmt.Errorf("tool is required")
	}
	if rc.Source == "" {
		return fmt.Errorf("source is required")
	}
	if rc.Param == "" {
		return fmt.Errorf("param is required")
	}
	if strings.ContainsAny(rc.Param, " \t:") {
		return fmt.Errorf("param %q must not contain whitespace or ':'", rc.Param)
	}
	if _, err := plan.ParseName(rc.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if _, err := plan.ParseCommand(rc.Command); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

// hasValuesKey reports whether the document sets values at the top level,
// including an explicit empty list.
func hasValuesKey(data []byte) bool {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false
	}
	_, ok := raw["values"]
	return ok
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}

// Save writes the current render configuration back to the project config
// file. Values already in the file are replaced in place, so its comments
// survive the rewrite.
func (c *Config) Save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Render.normalize()
	if err := c.Render.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := EnsureStateDir(c.ProjectDir); err != nil {
		return err
	}
	var fresh yaml.Node
	if err := fresh.Encode(c.Render); err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	path := c.ProjectConfigPath()
	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	out := &fresh
	if doc != nil {
		mergeMapping(doc.Content[0], &fresh)
		out = doc
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	c.Path = path
	return nil
}

// readDocument returns the parsed file when it holds a top-level mapping, or
// nil when there is nothing worth keeping.
func readDocument(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil
	}
	return &doc, nil
}

// mergeMapping copies every key of src into dst. Existing value nodes are
// replaced but keep their comments; new keys are appended.
func mergeMapping(dst, src *yaml.Node) {
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, value := src.Content[i], src.Content[i+1]
		found := false
		for j := 0; j+1 < len(dst.Content); j += 2 {
			if dst.Content[j].Value != key.Value {
				continue
			}
			old := dst.Content[j+1]
			value.HeadComment = old.HeadComment
			value.LineComment = old.LineComment
			value.FootComment = old.FootComment
			dst.Content[j+1] = value
			found = true
			break
		}
		if !found {
			dst.Content = append(dst.Content, key, value)
		}
	}
}
