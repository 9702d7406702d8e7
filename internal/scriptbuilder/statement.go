package scriptbuilder

import (
	"fmt"
	"strings"
)

const (
	openVar  = "{varl}"
	closeVar = "{varr}"
)

// expand resolves every placeholder in stmt in a single left-to-right pass.
// Substituted values are copied verbatim and never scanned again, and brace
// groups that do not name a token are left as they are.
func expand(stmt string, tokens Tokens, vars variableSet) (string, error) {
	var out strings.Builder
	rest := stmt
	for {
		i := strings.IndexByte(rest, '{')
		if i < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}
		out.WriteString(rest[:i])
		rest = rest[i:]

		if strings.HasPrefix(rest, openVar) {
			body := rest[len(openVar):]
			j := strings.Index(body, closeVar)
			if j < 0 {
				return "", fmt.Errorf("%w: unterminated variable reference in %q", ErrInvalidSpec, stmt)
			}
			name := body[:j]
			if !variableNamePattern.MatchString(name) {
				return "", fmt.Errorf("%w: bad variable name %q in %q", ErrInvalidSpec, name, stmt)
			}
			value, ok := vars.lookup(name)
			if !ok {
				return "", &UndefinedVariableError{Name: name, Statement: stmt}
			}
			out.WriteString(value)
			rest = body[j+len(closeVar):]
			continue
		}

		j := strings.IndexByte(rest, '}')
		if j > 0 {
			if tok, ok := tokensByName[rest[1:j]]; ok {
				out.WriteString(tokens.Get(tok))
				rest = rest[j+1:]
				continue
			}
		}
		out.WriteByte('{')
		rest = rest[1:]
	}
}

// expandAll expands the statements and splits them on embedded newlines so
// that every returned line can be terminated with the family's separator.
func expandAll(statements []string, tokens Tokens, vars variableSet) ([]string, error) {
	lf := tokens.Get(TokenLF)
	var lines []string
	for _, stmt := range statements {
		expanded, err := expand(stmt, tokens, vars)
		if err != nil {
			return nil, err
		}
		expanded = strings.ReplaceAll(expanded, lf, "\n")
		for _, line := range strings.Split(expanded, "\n") {
			lines = append(lines, strings.TrimSuffix(line, "\r"))
		}
	}
	return lines, nil
}
