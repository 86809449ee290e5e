package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ScanDirectory walks root, filters to allowed filing formats, skips
// hidden entries if requested, and describes each file. Returns per-file
// documents plus aggregate stats. An unreadable root is an error; walk
// errors on individual entries are recorded and do not stop the scan.
func ScanDirectory(root string, skipHidden bool) ([]Document, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var docs []Document
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			docs = append(docs, Document{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		doc, err := Describe(path)
		if err != nil {
			docs = append(docs, Document{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		docs = append(docs, doc)
		stats.Hashed++
		return nil
	})

	if err != nil {
		return docs, stats, fmt.Errorf("walk: %w", err)
	}
	return docs, stats, nil
}
