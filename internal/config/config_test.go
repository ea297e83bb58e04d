package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, projectDir, body string) string {
	t.Helper()
	stateDir := filepath.Join(projectDir, StateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(stateDir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(body)), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	t.Setenv(ToolEnv, "")
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Path != "" {
		t.Fatalf("expected no config path, got %s", c.Path)
	}
	if c.Render.Tool != "quarto" || c.Render.Source != "index.qmd" || c.Render.Param != "year" {
		t.Fatalf("unexpected defaults: %+v", c.Render)
	}
	if len(c.Render.Values) != 3 || c.Render.Values[0] != 2007 || c.Render.Values[2] != 2009 {
		t.Fatalf("unexpected default values: %v", c.Render.Values)
	}
	if !c.StreamOutput() {
		t.Fatalf("expected stream_output to default to true")
	}
	if c.Render.Strict {
		t.Fatalf("expected strict to default to false")
	}
}

func TestNewConfigParsesYaml(t *testing.T) {
	t.Setenv(ToolEnv, "")
	projectDir := t.TempDir()
	writeConfig(t, projectDir, `
version: 1
tool: /opt/quarto/bin/quarto
source: reports/penguins.qmd
param: island
values: [1, 2]
output: "{param}_{value}.pdf"
strict: true
stream_output: false
`)
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Render.Tool != "/opt/quarto/bin/quarto" {
		t.Fatalf("wrong tool: %s", c.Render.Tool)
	}
	if len(c.Render.Values) != 2 {
		t.Fatalf("expected 2 values, got %v", c.Render.Values)
	}
	if c.Render.Command != defaultRenderConfig().Command {
		t.Fatalf("expected default command, got %q", c.Render.Command)
	}
	if !c.Render.Strict || c.StreamOutput() {
		t.Fatalf("flags not parsed: %+v", c.Render)
	}
	spec, err := c.Spec()
	if err != nil {
		t.Fatalf("Spec returned error: %v", err)
	}
	if got := spec.Name.Expand(spec.Param, 2); got != "island_2.pdf" {
		t.Fatalf("unexpected output name %q", got)
	}
}

func TestExplicitEmptyValuesAreKept(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, `
version: 1
values: []
`)
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if len(c.Render.Values) != 0 {
		t.Fatalf("expected no values, got %v", c.Render.Values)
	}
}

func TestNewConfigValidation(t *testing.T) {
	cases := map[string]string{
		"version":     "version: 2",
		"placeholder": `command: "{tool} render {document}"`,
		"output":      `output: "{output}.html"`,
		"param":       "param: \"a:b\"",
		"values":      "values: [one, two]",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			projectDir := t.TempDir()
			writeConfig(t, projectDir, body)
			if _, err := NewConfig(projectDir); err == nil {
				t.Fatalf("expected error for %s", body)
			}
		})
	}
}

func TestToolEnvOverride(t *testing.T) {
	t.Setenv(ToolEnv, "  /usr/local/bin/quarto ")
	c, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if c.Render.Tool != "quarto" {
		t.Fatalf("env override must not change the file setting, got %q", c.Render.Tool)
	}
	spec, err := c.Spec()
	if err != nil {
		t.Fatal(err)
	}
	if spec.Tool != "/usr/local/bin/quarto" {
		t.Fatalf("expected env override in spec, got %q", spec.Tool)
	}
	if err := c.Override(map[string]string{"tool": "/opt/quarto"}); err != nil {
		t.Fatal(err)
	}
	if c.Tool() != "/opt/quarto" {
		t.Fatalf("explicit tool override should win over env, got %q", c.Tool())
	}
}

func TestLoadRequiresFile(t *testing.T) {
	projectDir := t.TempDir()
	if _, err := Load(projectDir, filepath.Join(projectDir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestInitDirWritesLoadableDefaults(t *testing.T) {
	t.Setenv(ToolEnv, "")
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(projectDir, StateDir, "logs")); err != nil {
		t.Fatalf("expected logs dir: %v", err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Path != c.ProjectConfigPath() {
		t.Fatalf("expected config to be read from %s, got %q", c.ProjectConfigPath(), c.Path)
	}
	def := defaultRenderConfig()
	if c.Render.Command != def.Command || c.Render.Output != def.Output || len(c.Render.Values) != 3 {
		t.Fatalf("written defaults do not round-trip: %+v", c.Render)
	}
}

func TestInitDirKeepsExistingConfig(t *testing.T) {
	projectDir := t.TempDir()
	path := writeConfig(t, projectDir, "values: [1999]")
	if err := InitDir(projectDir); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "values: [1999]" {
		t.Fatalf("InitDir overwrote existing config: %s", data)
	}
}

func TestSavePersistsValues(t *testing.T) {
	t.Setenv(ToolEnv, "")
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	c.Render.Values = []int{2010, 2011}
	if err := c.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	reloaded, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(reloaded.Render.Values) != 2 || reloaded.Render.Values[1] != 2011 {
		t.Fatalf("values not persisted: %v", reloaded.Render.Values)
	}
}

func TestOverride(t *testing.T) {
	t.Setenv(ToolEnv, "")
	c, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Override(map[string]string{"source": " slides.qmd ", "output": "slides_{value}.pdf"}); err != nil {
		t.Fatalf("Override returned error: %v", err)
	}
	if c.Render.Source != "slides.qmd" || c.Render.Output != "slides_{value}.pdf" {
		t.Fatalf("override not applied: %+v", c.Render)
	}
	if err := c.Override(map[string]string{"colour": "blue"}); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
	if err := c.Override(map[string]string{"tool": "  "}); err == nil {
		t.Fatalf("expected empty tool to be rejected")
	}
	if c.Render.Tool != "quarto" {
		t.Fatalf("failed override must not change config, tool is %q", c.Render.Tool)
	}
}

func TestSaveDoesNotPersistToolEnv(t *testing.T) {
	t.Setenv(ToolEnv, "/tmp/fake-tool")
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Override(map[string]string{"source": "a.qmd"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	data, err := os.ReadFile(c.ProjectConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "tool: quarto") || strings.Contains(string(data), "fake-tool") {
		t.Fatalf("env tool leaked into config:\n%s", data)
	}
}

func TestSaveKeepsComments(t *testing.T) {
	t.Setenv(ToolEnv, "")
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	c.Render.Values = []int{2010}
	if err := c.Override(map[string]string{"source": "slides.qmd"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	data, err := os.ReadFile(c.ProjectConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	for _, comment := range []string{"# Renderer executable", "# Source document", "# Exit non-zero"} {
		if !strings.Contains(string(data), comment) {
			t.Fatalf("comment %q lost on save:\n%s", comment, data)
		}
	}
	reloaded, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Render.Source != "slides.qmd" || len(reloaded.Render.Values) != 1 || reloaded.Render.Values[0] != 2010 {
		t.Fatalf("saved values not reloaded: %+v", reloaded.Render)
	}
}
