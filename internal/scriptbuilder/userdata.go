package scriptbuilder

import (
	"fmt"
	"strings"
)

const userDataTerminator = "END_OF_INIT"

// UserData wraps the init script for spec into a boot-time launcher. Cloud
// init agents run user data without arguments, so the launcher writes the
// init script to the working directory as <name>-init and calls it with
// init and then start.
func UserData(spec Spec, family OsFamily) (string, error) {
	script, err := Render(spec, family)
	if err != nil {
		return "", err
	}
	tokens, err := TokensFor(family)
	if err != nil {
		return "", err
	}

	var lines []string
	switch family {
	case Unix:
		lines = unixUserData(spec, script)
	case Windows:
		lines = windowsUserData(spec, tokens, script)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownOsFamily, family)
	}

	lf := tokens.Get(TokenLF)
	return strings.Join(lines, lf) + lf, nil
}

// LauncherPath is where UserData writes the init script on the instance.
func LauncherPath(spec Spec, family OsFamily) (string, error) {
	tokens, err := TokensFor(family)
	if err != nil {
		return "", err
	}
	path := strings.TrimRight(spec.WorkDir, tokens.Get(TokenFS)) + tokens.Get(TokenFS) + spec.Name + "-init"
	if family == Windows {
		path += ".cmd"
	}
	return path, nil
}

func unixUserData(spec Spec, script string) []string {
	path, _ := LauncherPath(spec, Unix)
	quoted := `"` + unixQuoter.Replace(path) + `"`
	dir := `"` + unixQuoter.Replace(spec.WorkDir) + `"`

	out := []string{
		"#!/bin/bash",
		"mkdir -p " + dir,
		"cat > " + quoted + " <<'" + userDataTerminator + "'",
	}
	out = append(out, strings.Split(strings.TrimSuffix(script, "\n"), "\n")...)
	out = append(out,
		userDataTerminator,
		"chmod u+x "+quoted,
		quoted+" init || exit 1",
		quoted+" start || exit 1",
	)
	return out
}

func windowsUserData(spec Spec, tokens Tokens, script string) []string {
	path, _ := LauncherPath(spec, Windows)
	quoted := `"` + path + `"`

	out := []string{
		"@echo off",
		`md "` + spec.WorkDir + `" 2>NUL`,
		"del " + quoted + " 2>NUL",
	}
	lf := tokens.Get(TokenLF)
	for _, line := range strings.Split(strings.TrimSuffix(script, lf), lf) {
		out = append(out, ">>"+quoted+" "+windowsEcho(line))
	}
	out = append(out,
		"call "+quoted+" init",
		"if errorlevel 1 exit /b 1",
		"call "+quoted+" start",
		"exit /b %errorlevel%",
	)
	return out
}
