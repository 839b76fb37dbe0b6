package maincmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"

	"github.com/mna/apstore/internal/maincmd"
)

const testProgram = `
program:

params:
	a

signatures:
	sig make_temp 0 1 k1 1 tfelt

code:
	invoke make_temp 0 1 fallthrough 1 x
	return 1 x
`

func writeTestProgram(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.asm")
	require.NoError(t, os.WriteFile(path, []byte(testProgram), 0600))
	return path
}

func TestRunFile(t *testing.T) {
	path := writeTestProgram(t)
	var out bytes.Buffer
	err := maincmd.RunFile(mainer.Stdio{Stdout: &out}, path)
	require.NoError(t, err)
	require.Contains(t, out.String(), "code:\n")
	require.Contains(t, out.String(), "x")
}

func TestDumpFile(t *testing.T) {
	path := writeTestProgram(t)
	var out bytes.Buffer
	err := maincmd.DumpFile(mainer.Stdio{Stdout: &out}, path)
	require.NoError(t, err)
	require.Contains(t, out.String(), "code:\n")
}

func TestRunFileMissing(t *testing.T) {
	var out bytes.Buffer
	err := maincmd.RunFile(mainer.Stdio{Stdout: &out}, filepath.Join(t.TempDir(), "missing.asm"))
	require.Error(t, err)
}

func TestValidateRequiresCommand(t *testing.T) {
	c := &maincmd.Cmd{}
	c.SetArgs(nil)
	c.SetFlags(nil)
	require.Error(t, c.Validate())
}

func TestValidateRequiresExactlyOneFile(t *testing.T) {
	c := &maincmd.Cmd{}
	c.SetArgs([]string{"run"})
	c.SetFlags(nil)
	require.Error(t, c.Validate())

	c.SetArgs([]string{"run", "a.asm", "b.asm"})
	require.Error(t, c.Validate())

	c.SetArgs([]string{"run", "a.asm"})
	require.NoError(t, c.Validate())
}
