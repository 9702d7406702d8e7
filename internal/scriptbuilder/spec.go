// Package scriptbuilder renders init scripts for a target OsFamily from an
// ordered list of statements and a set of named variables.
package scriptbuilder

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Built-in variables every script defines.
const (
	VarInstanceName = "INSTANCE_NAME"
	VarInstanceHome = "INSTANCE_HOME"
	VarLogDir       = "LOG_DIR"
)

var scriptNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

var variableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Spec describes one init script. It is not modified by rendering.
type Spec struct {
	// Name names the generated script file and its init function.
	Name string
	// WorkDir becomes INSTANCE_HOME; the script runs from there.
	WorkDir string
	// LogDir receives stdout.log and stderr.log when the script is started.
	LogDir string
	// Variables are keyed by camelCase name; statements refer to them in
	// UPPER_SNAKE form, e.g. tmpDir as {varl}TMP_DIR{varr}.
	Variables map[string]string
	// Statements are executed in order.
	Statements []string
}

// NewSpec is a convenience for building a Spec inline.
func NewSpec(name, workDir, logDir string, variables map[string]string, statements ...string) Spec {
	return Spec{
		Name:       name,
		WorkDir:    workDir,
		LogDir:     logDir,
		Variables:  variables,
		Statements: statements,
	}
}

// Validate checks the fields rendering depends on.
func (s Spec) Validate() error {
	if err := s.validateFields(); err != nil {
		return err
	}
	_, err := s.variables()
	return err
}

// ValidName reports whether name can be used as a script name.
func ValidName(name string) bool {
	return scriptNamePattern.MatchString(name)
}

func (s Spec) validateFields() error {
	if !scriptNamePattern.MatchString(s.Name) {
		return fmt.Errorf("%w: name %q must match %s", ErrInvalidSpec, s.Name, scriptNamePattern)
	}
	if strings.TrimSpace(s.WorkDir) == "" {
		return fmt.Errorf("%w: working directory is required", ErrInvalidSpec)
	}
	if strings.TrimSpace(s.LogDir) == "" {
		return fmt.Errorf("%w: log directory is required", ErrInvalidSpec)
	}
	if strings.ContainsAny(s.WorkDir+s.LogDir, "\r\n") {
		return fmt.Errorf("%w: directories must be single-line", ErrInvalidSpec)
	}
	return nil
}

// VariableName converts a camelCase key to the UPPER_SNAKE name used in
// scripts. Keys already in UPPER_SNAKE form are returned unchanged.
func VariableName(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			if unicode.IsLower(prev) || unicode.IsDigit(prev) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

type variable struct {
	name  string
	value string
}

// variableSet holds the built-ins followed by the user variables sorted by
// name.
type variableSet struct {
	builtins []variable
	user     []variable
	byName   map[string]string
}

func (v variableSet) lookup(name string) (string, bool) {
	val, ok := v.byName[name]
	return val, ok
}

func (v variableSet) all() []variable {
	out := make([]variable, 0, len(v.builtins)+len(v.user))
	out = append(out, v.builtins...)
	return append(out, v.user...)
}

func (s Spec) variables() (variableSet, error) {
	set := variableSet{
		builtins: []variable{
			{VarInstanceName, s.Name},
			{VarInstanceHome, s.WorkDir},
			{VarLogDir, s.LogDir},
		},
		byName: make(map[string]string, len(s.Variables)+3),
	}
	for _, b := range set.builtins {
		set.byName[b.name] = b.value
	}

	origin := make(map[string]string, len(s.Variables))
	for key, value := range s.Variables {
		name := VariableName(key)
		if !variableNamePattern.MatchString(name) {
			return variableSet{}, fmt.Errorf("%w: variable %q is not a valid shell name", ErrInvalidSpec, key)
		}
		if _, builtin := set.byName[name]; builtin && origin[name] == "" {
			return variableSet{}, fmt.Errorf("%w: variable %q shadows built-in %s", ErrInvalidSpec, key, name)
		}
		if prev, dup := origin[name]; dup {
			first, second := prev, key
			if second < first {
				first, second = second, first
			}
			return variableSet{}, fmt.Errorf("%w: variables %q and %q both map to %s", ErrInvalidSpec, first, second, name)
		}
		if strings.ContainsAny(value, "\r\n") {
			return variableSet{}, fmt.Errorf("%w: variable %q must be single-line", ErrInvalidSpec, key)
		}
		origin[name] = key
		set.byName[name] = value
		set.user = append(set.user, variable{name, value})
	}
	sort.Slice(set.user, func(i, j int) bool { return set.user[i].name < set.user[j].name })
	return set, nil
}
