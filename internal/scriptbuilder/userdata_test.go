package scriptbuilder

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserData_Unix(t *testing.T) {
	spec := initSpec()
	script, err := Render(spec, Unix)
	require.NoError(t, err)

	out, err := UserData(spec, Unix)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "#!/bin/bash\nmkdir -p \"/mnt/tmp\"\ncat > \"/mnt/tmp/mkebsboot-init\" <<'END_OF_INIT'\n"))
	assert.Contains(t, out, "\n"+script+"END_OF_INIT\n")
	assert.True(t, strings.HasSuffix(out, strings.Join([]string{
		`chmod u+x "/mnt/tmp/mkebsboot-init"`,
		`"/mnt/tmp/mkebsboot-init" init || exit 1`,
		`"/mnt/tmp/mkebsboot-init" start || exit 1`,
	}, "\n")+"\n"))
}

func TestUserData_Windows(t *testing.T) {
	spec := NewSpec("mkebsboot", `c:\boot`, `c:\boot\logs`, nil, "dir")
	out, err := UserData(spec, Windows)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	assert.Equal(t, []string{"@echo off", `md "c:\boot" 2>NUL`, `del "c:\boot\mkebsboot-init.cmd" 2>NUL`}, lines[:3])
	assert.Equal(t, `>>"c:\boot\mkebsboot-init.cmd" echo @echo off`, lines[3])
	assert.Equal(t, []string{
		`call "c:\boot\mkebsboot-init.cmd" init`,
		"if errorlevel 1 exit /b 1",
		`call "c:\boot\mkebsboot-init.cmd" start`,
		"exit /b %errorlevel%",
	}, lines[len(lines)-4:])
	assert.Contains(t, out, `>>"c:\boot\mkebsboot-init.cmd" echo goto CASE_%%1`+"\r\n")
}

func TestUserData_Errors(t *testing.T) {
	_, err := UserData(NewSpec("x", "/a", "/b", nil, "echo {varl}NOPE{varr}"), Unix)
	assert.ErrorIs(t, err, ErrUndefinedVariable)

	_, err = UserData(initSpec(), OsFamily(7))
	assert.ErrorIs(t, err, ErrUnknownOsFamily)
}

func TestLauncherPath(t *testing.T) {
	got, err := LauncherPath(NewSpec("boot", "/srv/", "/srv", nil), Unix)
	require.NoError(t, err)
	assert.Equal(t, "/srv/boot-init", got)

	got, err = LauncherPath(NewSpec("boot", `c:\srv`, `c:\srv`, nil), Windows)
	require.NoError(t, err)
	assert.Equal(t, `c:\srv\boot-init.cmd`, got)
}

// Runs the launcher the way a cloud init agent does: no arguments.
func TestUserData_UnixRunsStatements(t *testing.T) {
	if runtime.GOOS == "windows" || testing.Short() {
		t.Skip("needs bash")
	}
	bash, err := exec.LookPath("bash")
	if err != nil {
		t.Skip("bash not installed")
	}

	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	spec := NewSpec("bootmark", dir, filepath.Join(dir, "logs"), nil, "touch "+marker)

	out, err := UserData(spec, Unix)
	require.NoError(t, err)
	launcher := filepath.Join(dir, "user-data")
	require.NoError(t, os.WriteFile(launcher, []byte(out), 0o755))

	res, err := exec.Command(bash, launcher).CombinedOutput()
	require.NoError(t, err, string(res))

	assert.FileExists(t, filepath.Join(dir, "bootmark-init"))
	assert.FileExists(t, filepath.Join(dir, "bootmark.sh"))
	assert.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}
