package scriptbuilder

import (
	"fmt"
	"strings"
)

const (
	unixPath    = "/usr/ucb/bin:/bin:/sbin:/usr/bin:/usr/sbin"
	windowsPath = `c:\windows\;C:\windows\system32;c:\windows\system32\wbem`
	indent      = "   "
)

// Render produces the init script for spec on the given family. The result
// depends only on its arguments; variables are emitted sorted by name.
func Render(spec Spec, family OsFamily) (string, error) {
	tokens, err := TokensFor(family)
	if err != nil {
		return "", err
	}
	if err := spec.validateFields(); err != nil {
		return "", err
	}
	vars, err := spec.variables()
	if err != nil {
		return "", err
	}
	body, err := expandAll(spec.Statements, tokens, vars)
	if err != nil {
		return "", err
	}

	s := initScript{spec: spec, tokens: tokens, vars: vars, body: body}
	var lines []string
	switch family {
	case Unix:
		lines = s.unix()
	case Windows:
		lines = s.windows()
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownOsFamily, family)
	}

	lf := tokens.Get(TokenLF)
	return strings.Join(lines, lf) + lf, nil
}

// MustRender is Render for specs known to be valid, such as package-level
// fixtures. It panics on error.
func MustRender(spec Spec, family OsFamily) string {
	out, err := Render(spec, family)
	if err != nil {
		panic(err)
	}
	return out
}

// FileName returns the name of the generated inner script, e.g. name.sh.
func FileName(name string, family OsFamily) (string, error) {
	ext, err := TokenSH.To(family)
	if err != nil {
		return "", err
	}
	return name + "." + ext, nil
}

type initScript struct {
	spec   Spec
	tokens Tokens
	vars   variableSet
	body   []string
}

func (s initScript) ref(name string) string {
	return s.tokens.Ref(name)
}

// scriptPath is the inner script location, written with shell references so
// it resolves on the target.
func (s initScript) scriptPath() string {
	return s.ref(VarInstanceHome) + s.tokens.Get(TokenFS) + s.spec.Name + "." + s.tokens.Get(TokenSH)
}

func (s initScript) logPath(file string) string {
	return s.ref(VarLogDir) + s.tokens.Get(TokenFS) + file
}

func (s initScript) unix() []string {
	name := s.spec.Name
	out := []string{
		"#!/bin/bash",
		"set +u",
		"shopt -s xpg_echo",
		"shopt -s expand_aliases",
		"unset PATH JAVA_HOME LD_LIBRARY_PATH",
		"function abort {",
		indent + `echo "aborting: $@" 1>&2`,
		indent + "exit 1",
		"}",
		"function default {",
	}
	for _, v := range s.vars.builtins {
		out = append(out, indent+unixExport(v))
	}
	out = append(out,
		indent+"return 0",
		"}",
		"function "+name+" {",
	)
	for _, v := range s.vars.user {
		out = append(out, indent+unixExport(v))
	}
	out = append(out,
		indent+"return 0",
		"}",
	)
	out = append(out, unixFunctions...)
	out = append(out,
		"export PATH="+unixPath,
		"case $1 in",
		"init)",
		indent+"default || exit 1",
		indent+name+" || exit 1",
		indent+"mkdir -p "+s.ref(VarInstanceHome),
		indent+"rm -f "+s.scriptPath(),
		indent+"cat > "+s.scriptPath()+" <<'END_OF_SCRIPT'",
	)
	out = append(out,
		"#!/bin/bash",
		"set +u",
		"shopt -s xpg_echo",
		"shopt -s expand_aliases",
		"export PATH="+unixPath,
	)
	for _, v := range s.vars.all() {
		out = append(out, unixExport(v))
	}
	out = append(out, s.tokens.Get(TokenCD)+" "+s.ref(VarInstanceHome))
	out = append(out, s.body...)
	out = append(out,
		"exit 0",
		"END_OF_SCRIPT",
		indent+"chmod u+x "+s.scriptPath(),
		indent+";;",
		"status)",
		indent+"default || exit 1",
		indent+"findPid $INSTANCE_NAME || exit 1",
		indent+"echo [$FOUND_PID]",
		indent+";;",
		"stop)",
		indent+"default || exit 1",
		indent+"findPid $INSTANCE_NAME || exit 1",
		indent+`[ -n "$FOUND_PID" ] && {`,
		indent+indent+"echo stopping $FOUND_PID",
		indent+indent+"kill -9 $FOUND_PID",
		indent+"}",
		indent+";;",
		"start)",
		indent+"default || exit 1",
		indent+"forget $INSTANCE_NAME "+s.scriptPath()+" $LOG_DIR || exit 1",
		indent+";;",
		"tail)",
		indent+"default || exit 1",
		indent+"tail "+s.logPath("stdout.log"),
		indent+";;",
		"tailerr)",
		indent+"default || exit 1",
		indent+"tail "+s.logPath("stderr.log"),
		indent+";;",
		"run)",
		indent+"default || exit 1",
		indent+s.scriptPath(),
		indent+";;",
		"esac",
		"exit 0",
	)
	return out
}

var unixFunctions = []string{
	"function findPid {",
	"   unset FOUND_PID;",
	"   [ $# -eq 1 ] || {",
	`      abort "findPid requires a parameter of pattern to match"`,
	"      return 1",
	"   }",
	`   local PATTERN="$1"; shift`,
	"   local _FOUND=`ps auxwww|grep \"$PATTERN\"|grep -v \" $0\"|grep -v grep|awk '{print $2}'`",
	`   [ -n "$_FOUND" ] && {`,
	"      export FOUND_PID=$_FOUND",
	"      return 0",
	"   } || {",
	"      return 1",
	"   }",
	"}",
	"function forget {",
	"   unset FOUND_PID;",
	"   [ $# -eq 3 ] || {",
	`      abort "forget requires parameters INSTANCE_NAME SCRIPT LOG_DIR"`,
	"      return 1",
	"   }",
	`   local INSTANCE_NAME="$1"; shift`,
	`   local SCRIPT="$1"; shift`,
	`   local LOG_DIR="$1"; shift`,
	"   mkdir -p $LOG_DIR",
	"   findPid $INSTANCE_NAME",
	`   [ -n "$FOUND_PID" ] && {`,
	"      echo $INSTANCE_NAME already running pid [$FOUND_PID]",
	"      return 1",
	"   } || {",
	"      nohup $SCRIPT >$LOG_DIR/stdout.log 2>$LOG_DIR/stderr.log &",
	"      return 0",
	"   }",
	"}",
}

var unixQuoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

func unixExport(v variable) string {
	return "export " + v.name + `="` + unixQuoter.Replace(v.value) + `"`
}

var windowsCases = []string{"init", "start", "tail", "tailerr", "run"}

func (s initScript) windows() []string {
	name := s.spec.Name
	out := []string{
		"@echo off",
		"set PATH=",
		"set JAVA_HOME=",
		"set PATH=" + windowsPath,
		"GOTO FUNCTION_END",
		":abort",
		indent + "echo aborting: %EXCEPTION%",
		indent + "exit /b 1",
		":default",
	}
	for _, v := range s.vars.builtins {
		out = append(out, indent+windowsSet(v))
	}
	out = append(out,
		indent+"exit /b 0",
		":"+name,
	)
	for _, v := range s.vars.user {
		out = append(out, indent+windowsSet(v))
	}
	out = append(out,
		indent+"exit /b 0",
		":FUNCTION_END",
	)

	var guard strings.Builder
	for _, c := range windowsCases {
		guard.WriteString(`if not "%1" == "` + c + `" `)
	}
	out = append(out,
		guard.String()+"(",
		indent+"set EXCEPTION=bad argument: %1 not in "+strings.Join(windowsCases, " "),
		indent+"goto abort",
		")",
		"goto CASE_%1",
	)

	callDefault := []string{
		indent + "call :default",
		indent + "if errorlevel 1 goto abort",
	}

	out = append(out, ":CASE_init")
	out = append(out, callDefault...)
	out = append(out,
		indent+"call :"+name,
		indent+"if errorlevel 1 goto abort",
		indent+"md "+s.ref(VarInstanceHome)+" 2>NUL",
		indent+"del "+s.scriptPath()+" 2>NUL",
	)
	inner := []string{
		"@echo off",
		"set PATH=" + windowsPath,
	}
	for _, v := range s.vars.all() {
		inner = append(inner, windowsSet(v))
	}
	inner = append(inner, s.tokens.Get(TokenCD)+" "+s.ref(VarInstanceHome))
	inner = append(inner, s.body...)
	inner = append(inner, "exit /b 0")
	for _, line := range inner {
		out = append(out, indent+">>"+s.scriptPath()+" "+windowsEcho(line))
	}
	out = append(out, indent+"GOTO END_SWITCH")

	out = append(out, ":CASE_start")
	out = append(out, callDefault...)
	out = append(out,
		indent+"md "+s.ref(VarLogDir)+" 2>NUL",
		indent+"start /b cmd /c "+s.scriptPath()+" >"+s.logPath("stdout.log")+" 2>"+s.logPath("stderr.log"),
		indent+"GOTO END_SWITCH",
	)

	out = append(out, ":CASE_tail")
	out = append(out, callDefault...)
	out = append(out,
		indent+"type "+s.logPath("stdout.log"),
		indent+"GOTO END_SWITCH",
	)

	out = append(out, ":CASE_tailerr")
	out = append(out, callDefault...)
	out = append(out,
		indent+"type "+s.logPath("stderr.log"),
		indent+"GOTO END_SWITCH",
	)

	out = append(out, ":CASE_run")
	out = append(out, callDefault...)
	out = append(out,
		indent+"call "+s.scriptPath(),
		indent+"GOTO END_SWITCH",
		":END_SWITCH",
		"exit /b 0",
	)
	return out
}

// windowsSet assigns v with batch metacharacters escaped, so the value is
// stored verbatim.
func windowsSet(v variable) string {
	return "set " + v.name + "=" + windowsEscaper.Replace(v.value)
}

var windowsEscaper = strings.NewReplacer(
	"^", "^^",
	"&", "^&",
	"|", "^|",
	"<", "^<",
	">", "^>",
	"%", "%%",
)

// windowsEcho renders line as an echo command that writes it back verbatim.
// "echo(" keeps on, off and /? from being read as echo options.
func windowsEcho(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return "echo."
	case strings.EqualFold(trimmed, "on"), strings.EqualFold(trimmed, "off"), strings.HasPrefix(trimmed, "/?"):
		return "echo(" + windowsEscaper.Replace(line)
	}
	return "echo " + windowsEscaper.Replace(line)
}
