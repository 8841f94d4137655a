package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aelhometta/vm/worldio"
)

func TestNewTickStatsPipeline(t *testing.T) {
	dir := t.TempDir()
	savePath := filepath.Join(dir, "w.aelw")

	root := newRootCmd()
	root.SetArgs([]string{"new", "--chains-binlog=8", "--out=" + savePath})
	require.NoError(t, root.Execute())

	root = newRootCmd()
	root.SetArgs([]string{"tick", "--in=" + savePath, "--out=" + savePath, "--n=3"})
	require.NoError(t, root.Execute())

	w, err := worldio.Load(savePath)
	require.NoError(t, err)
	require.Equal(t, uint64(3), w.Age.Lo)

	root = newRootCmd()
	root.SetArgs([]string{"stats", "--in=" + savePath})
	require.NoError(t, root.Execute())
}

func TestSwitchRequiresExactlyOneFlag(t *testing.T) {
	dir := t.TempDir()
	savePath := filepath.Join(dir, "w.aelw")

	root := newRootCmd()
	root.SetArgs([]string{"new", "--out=" + savePath})
	require.NoError(t, root.Execute())

	root = newRootCmd()
	root.SilenceErrors = true
	root.SilenceUsage = true
	root.SetArgs([]string{"switch", "--in=" + savePath, "--out=" + savePath, "--command=1"})
	require.Error(t, root.Execute())
}

func TestGlitchSetsProbabilities(t *testing.T) {
	dir := t.TempDir()
	savePath := filepath.Join(dir, "w.aelw")

	root := newRootCmd()
	root.SetArgs([]string{"new", "--out=" + savePath})
	require.NoError(t, root.Execute())

	root = newRootCmd()
	root.SetArgs([]string{"glitch", "--in=" + savePath, "--out=" + savePath, "--background=0.5"})
	require.NoError(t, root.Execute())

	w, err := worldio.Load(savePath)
	require.NoError(t, err)
	require.Equal(t, 0.5, w.PBackground)
}
