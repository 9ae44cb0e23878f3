package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/danmuck/wavebroker/internal/wave"
)

// fsWalker maps a local application tree onto the device application root.
type fsWalker struct {
	appID string
}

func (w fsWalker) Walk(root string) ([]wave.UploadPair, error) {
	var pairs []wave.UploadPair
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}
		pairs = append(pairs, wave.UploadPair{
			Local:  p,
			Remote: wave.AppPath(w.appID, filepath.ToSlash(rel)),
			Dir:    d.IsDir(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return pairs, nil
}

// treeSize totals the file bytes in pairs.
func treeSize(pairs []wave.UploadPair) (int64, error) {
	var total int64
	for _, p := range pairs {
		if p.Dir {
			continue
		}
		info, err := os.Stat(p.Local)
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
