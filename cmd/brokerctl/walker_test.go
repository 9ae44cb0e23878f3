package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/wavebroker/internal/wave"
)

func writeAppTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "93bt1p123e")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Bin"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Res", "480x800"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Bin", "Hello.exe"), make([]byte, 3600), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Res", "480x800", "icon.png"), []byte("png"), 0o644))
	return root
}

func TestWalkerMapsTreeUnderAppRoot(t *testing.T) {
	root := writeAppTree(t)
	pairs, err := fsWalker{appID: "93bt1p123e"}.Walk(root)
	require.NoError(t, err)

	var remotes []string
	for _, p := range pairs {
		remotes = append(remotes, p.Remote)
	}
	assert.Equal(t, []string{
		"/Osp/Applications/93bt1p123e/Bin",
		"/Osp/Applications/93bt1p123e/Bin/Hello.exe",
		"/Osp/Applications/93bt1p123e/Res",
		"/Osp/Applications/93bt1p123e/Res/480x800",
		"/Osp/Applications/93bt1p123e/Res/480x800/icon.png",
	}, remotes)
	assert.True(t, pairs[0].Dir)
	assert.False(t, pairs[1].Dir)

	size, err := treeSize(pairs)
	require.NoError(t, err)
	assert.Equal(t, int64(3603), size)
}

func TestWalkerMissingRoot(t *testing.T) {
	_, err := fsWalker{appID: "x"}.Walk(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

var _ wave.TreeWalker = fsWalker{}
