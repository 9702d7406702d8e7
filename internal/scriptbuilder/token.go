package scriptbuilder

import "fmt"

// ShellToken names a piece of shell syntax whose literal depends on the
// OsFamily. Statements reference tokens as {name}.
type ShellToken int

const (
	TokenFS ShellToken = iota
	TokenPS
	TokenLF
	TokenSH
	TokenSource
	TokenRem
	TokenArgs
	TokenVarL
	TokenVarR
	TokenLibraryPathVariable
	TokenReturn
	TokenExit
	TokenCD
	TokenMD
	TokenRM
	TokenExport
)

type tokenRow struct {
	name    string
	unix    string
	windows string
}

var tokenTable = map[ShellToken]tokenRow{
	TokenFS:                  {"fs", "/", "\\"},
	TokenPS:                  {"ps", ":", ";"},
	TokenLF:                  {"lf", "\n", "\r\n"},
	TokenSH:                  {"sh", "sh", "cmd"},
	TokenSource:              {"source", ".", "@call"},
	TokenRem:                 {"rem", "#", "@rem"},
	TokenArgs:                {"args", "$@", "%*"},
	TokenVarL:                {"varl", "$", "%"},
	TokenVarR:                {"varr", "", "%"},
	TokenLibraryPathVariable: {"libraryPathVariable", "LD_LIBRARY_PATH", "PATH"},
	TokenReturn:              {"return", "return", "exit /b"},
	TokenExit:                {"exit", "exit", "exit /b"},
	TokenCD:                  {"cd", "cd", "cd /d"},
	TokenMD:                  {"md", "mkdir -p", "md"},
	TokenRM:                  {"rm", "rm -f", "del /f /q"},
	TokenExport:              {"export", "export", "set"},
}

// tokensByName is the placeholder lookup used while scanning statements.
var tokensByName = func() map[string]ShellToken {
	m := make(map[string]ShellToken, len(tokenTable))
	for tok, row := range tokenTable {
		m[row.name] = tok
	}
	return m
}()

// Name returns the placeholder name, e.g. "cd" for {cd}.
func (t ShellToken) Name() string {
	return tokenTable[t].name
}

func (t ShellToken) String() string {
	if row, ok := tokenTable[t]; ok {
		return row.name
	}
	return fmt.Sprintf("ShellToken(%d)", int(t))
}

// To returns the literal for the given family.
func (t ShellToken) To(f OsFamily) (string, error) {
	row, ok := tokenTable[t]
	if !ok {
		return "", fmt.Errorf("unknown shell token %d", int(t))
	}
	switch f {
	case Unix:
		return row.unix, nil
	case Windows:
		return row.windows, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownOsFamily, f)
	}
}

// Tokens is a resolved view of the table for one family.
type Tokens struct {
	family   OsFamily
	literals map[ShellToken]string
}

// TokensFor resolves the whole table for f.
func TokensFor(f OsFamily) (Tokens, error) {
	lits := make(map[ShellToken]string, len(tokenTable))
	for tok := range tokenTable {
		lit, err := tok.To(f)
		if err != nil {
			return Tokens{}, err
		}
		lits[tok] = lit
	}
	return Tokens{family: f, literals: lits}, nil
}

// Family returns the family the table was resolved for.
func (t Tokens) Family() OsFamily {
	return t.family
}

// Get returns the literal for tok.
func (t Tokens) Get(tok ShellToken) string {
	return t.literals[tok]
}

// Ref renders a reference to a shell variable, $NAME or %NAME%.
func (t Tokens) Ref(name string) string {
	return t.literals[TokenVarL] + name + t.literals[TokenVarR]
}
