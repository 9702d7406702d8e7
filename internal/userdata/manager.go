// Package userdata stores named init script documents and turns them into
// instance user data.
package userdata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"bootkit/internal/scriptbuilder"
)

const DirName = "scripts"

// ErrScriptNotFound is returned for names with no stored document.
var ErrScriptNotFound = errors.New("script not found")

var storedName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Entry is one stored document.
type Entry struct {
	Name   string
	Format Format
}

// Manager handles stored script documents.
type Manager struct {
	basePath string
}

// NewManager opens the store under ~/.config/bootkit, creating it if needed.
func NewManager() (*Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}
	return NewManagerAt(filepath.Join(home, ".config", "bootkit", DirName))
}

// NewManagerAt opens a store rooted at path.
func NewManagerAt(path string) (*Manager, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scripts dir: %w", err)
	}
	return &Manager{basePath: path}, nil
}

func (m *Manager) getFilePath(name string, format Format) string {
	return filepath.Join(m.basePath, name+format.Ext())
}

// find returns the stored format for name.
func (m *Manager) find(name string) (Format, bool) {
	for _, f := range []Format{FormatYAML, FormatTOML} {
		if _, err := os.Stat(m.getFilePath(name, f)); err == nil {
			return f, true
		}
	}
	return "", false
}

// Create stores a document after checking that it parses and renders.
func (m *Manager) Create(name string, format Format, content []byte) error {
	if !storedName.MatchString(name) {
		return fmt.Errorf("invalid script name %q", name)
	}
	if _, ok := m.find(name); ok {
		return fmt.Errorf("script '%s' already exists", name)
	}

	doc, err := Decode(content, format)
	if err != nil {
		return err
	}
	if doc.Name == "" {
		if !scriptbuilder.ValidName(name) {
			return fmt.Errorf("script '%s' has no name field and '%s' is not a valid script name (letters, digits and _, starting with a letter); add a name to the document", name, name)
		}
		doc.Name = name
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("script '%s' is invalid: %w", name, err)
	}

	return os.WriteFile(m.getFilePath(name, format), content, 0644)
}

// List returns the stored documents sorted by name.
func (m *Manager) List() ([]Entry, error) {
	entries, err := os.ReadDir(m.basePath)
	if err != nil {
		return nil, err
	}

	var list []Entry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		format, err := FormatFromPath(e.Name())
		if err != nil {
			continue
		}
		list = append(list, Entry{
			Name:   strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Format: format,
		})
	}
	slices.SortFunc(list, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return list, nil
}

// Names returns the stored document names.
func (m *Manager) Names() ([]string, error) {
	list, err := m.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Name)
	}
	return names, nil
}

// Delete removes a stored document.
func (m *Manager) Delete(name string) error {
	format, ok := m.find(name)
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrScriptNotFound, name)
	}
	return os.Remove(m.getFilePath(name, format))
}

// Get returns the raw content of a stored document.
func (m *Manager) Get(name string) ([]byte, Format, error) {
	format, ok := m.find(name)
	if !ok {
		return nil, "", fmt.Errorf("%w: '%s'", ErrScriptNotFound, name)
	}
	content, err := os.ReadFile(m.getFilePath(name, format))
	if err != nil {
		return nil, "", err
	}
	return content, format, nil
}

// Load decodes a stored document.
func (m *Manager) Load(name string) (*Document, error) {
	format, ok := m.find(name)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrScriptNotFound, name)
	}
	return LoadFile(m.getFilePath(name, format))
}

// Resolve loads ref as a file path when one exists, otherwise as a stored
// document name.
func (m *Manager) Resolve(ref string) (*Document, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return LoadFile(ref)
	}
	return m.Load(ref)
}

// Exists checks if a document is stored under name.
func (m *Manager) Exists(name string) bool {
	_, ok := m.find(name)
	return ok
}
