package scriptbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	vars, err := NewSpec("sample", "/work", "/logs", map[string]string{"imageDir": "/img", "weird": "{cd}"}).variables()
	require.NoError(t, err)

	tests := []struct {
		name    string
		stmt    string
		family  OsFamily
		want    string
		wantErr error
	}{
		{name: "plain", stmt: "find /", family: Unix, want: "find /"},
		{name: "structural unix", stmt: "{cd} /a && {md} /b && {rm} /c", family: Unix, want: "cd /a && mkdir -p /b && rm -f /c"},
		{name: "structural windows", stmt: "{cd} a && {md} b && {rm} c", family: Windows, want: "cd /d a && md b && del /f /q c"},
		{name: "variable", stmt: "ls {varl}IMAGE_DIR{varr}{fs}boot", family: Unix, want: "ls /img/boot"},
		{name: "variable windows", stmt: "dir {varl}IMAGE_DIR{varr}{fs}boot", family: Windows, want: `dir /img\boot`},
		{name: "builtin", stmt: "cat {varl}LOG_DIR{varr}/x", family: Unix, want: "cat /logs/x"},
		{name: "values are not rescanned", stmt: "echo {varl}WEIRD{varr}", family: Unix, want: "echo {cd}"},
		{name: "unknown braces kept", stmt: "awk '{print $2}' ${HOME} {}", family: Unix, want: "awk '{print $2}' ${HOME} {}"},
		{name: "unmatched brace", stmt: "echo { open", family: Unix, want: "echo { open"},
		{name: "stray varr", stmt: "x{varr}y", family: Windows, want: "x%y"},
		{name: "undefined", stmt: "ls {varl}NOPE{varr}", family: Unix, wantErr: ErrUndefinedVariable},
		{name: "unterminated", stmt: "ls {varl}NOPE", family: Unix, wantErr: ErrInvalidSpec},
		{name: "empty name", stmt: "ls {varl}{varr}", family: Unix, wantErr: ErrInvalidSpec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := TokensFor(tt.family)
			require.NoError(t, err)

			got, err := expand(tt.stmt, tokens, vars)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandAll_SplitsLines(t *testing.T) {
	vars, err := NewSpec("sample", "/work", "/logs", nil).variables()
	require.NoError(t, err)

	for _, f := range []OsFamily{Unix, Windows} {
		tokens, err := TokensFor(f)
		require.NoError(t, err)
		lines, err := expandAll([]string{"one{lf}two", "three\r\nfour", "five"}, tokens, vars)
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two", "three", "four", "five"}, lines)
	}
}

func TestVariableName(t *testing.T) {
	tests := map[string]string{
		"tmpDir":        "TMP_DIR",
		"ebsMountPoint": "EBS_MOUNT_POINT",
		"imageDir":      "IMAGE_DIR",
		"TMP_DIR":       "TMP_DIR",
		"s3Bucket":      "S3_BUCKET",
		"disk2Size":     "DISK2_SIZE",
		"x":             "X",
	}
	for in, want := range tests {
		assert.Equal(t, want, VariableName(in), in)
	}
}
