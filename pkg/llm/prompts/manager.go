// Package prompts renders the chat system instructions from templates.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"text/template"

	"docentgo/pkg/model"
)

//go:embed templates
var builtin embed.FS

// SystemTemplate is the template used when a theme carries no context prompt.
const SystemTemplate = "chat/system.tmpl"

// Manager handles loading and rendering of prompt templates.
type Manager struct {
	root *template.Template
}

// NewManager loads the built-in templates, then any *.tmpl files under dir,
// which replace built-ins of the same name. dir may be empty.
func NewManager(dir string) (*Manager, error) {
	m := &Manager{}
	m.root = template.New("root").Funcs(template.FuncMap{
		"itemNames": itemNamesFunc,
	})

	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		return nil, err
	}
	if err := m.load(sub); err != nil {
		return nil, fmt.Errorf("loading built-in templates: %w", err)
	}
	if dir != "" {
		if _, statErr := os.Stat(dir); statErr == nil {
			if err := m.load(os.DirFS(dir)); err != nil {
				return nil, fmt.Errorf("loading templates from %s: %w", dir, err)
			}
		}
	}
	return m, nil
}

// load parses common/ first so macros are defined before the templates using them.
func (m *Manager) load(fsys fs.FS) error {
	var common, rest []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".tmpl") {
			return nil
		}
		if strings.HasPrefix(p, "common/") {
			common = append(common, p)
		} else {
			rest = append(rest, p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range common {
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if _, err = m.root.Parse(string(content)); err != nil {
			return fmt.Errorf("parsing %s: %w", p, err)
		}
	}
	for _, p := range rest {
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if _, err = m.root.New(path.Clean(p)).Parse(string(content)); err != nil {
			return fmt.Errorf("parsing %s: %w", p, err)
		}
	}
	return nil
}

// Render executes the named template with the provided data.
func (m *Manager) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := m.root.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SystemInstruction returns the theme's context prompt, or the rendered
// system template when it has none.
func (m *Manager) SystemInstruction(theme model.Theme, items []model.Item) (string, error) {
	if s := strings.TrimSpace(theme.ContextPrompt); s != "" {
		return s, nil
	}
	out, err := m.Render(SystemTemplate, struct {
		Theme model.Theme
		Items []model.Item
	}{theme, items})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// itemNamesFunc lists item names, at most ten.
func itemNamesFunc(items []model.Item) string {
	var names []string
	for _, it := range items {
		if n := strings.TrimSpace(it.Name); n != "" {
			names = append(names, n)
		}
		if len(names) == 10 {
			break
		}
	}
	return strings.Join(names, ", ")
}
