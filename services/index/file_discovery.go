package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/meghashyamc/corescout/logger"
)

// DiscoverFiles walks rootPath and loads every regular file into memory, with
// paths relative to rootPath. Hidden files and directories and the folders in
// excludeFolders (relative to rootPath) are skipped.
func DiscoverFiles(logger logger.Logger, rootPath string, excludeFolders []string) ([]SourceFile, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("could not read ingestion root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ingestion root %s is not a directory", rootPath)
	}

	excludeSet := make(map[string]struct{}, len(excludeFolders))
	for _, folder := range excludeFolders {
		excludeSet[filepath.ToSlash(filepath.Clean(folder))] = struct{}{}
	}

	var files []SourceFile
	err = filepath.WalkDir(rootPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			logger.Error("could not walk through file or directory", "path", path, "err", err.Error())
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if path == rootPath {
			return nil
		}

		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") || isInExcludedPath(rel, excludeSet) {
				return filepath.SkipDir
			}
			return nil
		}

		// Skip hidden files, symlinks and other non-regular entries
		if strings.HasPrefix(entry.Name(), ".") || !entry.Type().IsRegular() {
			return nil
		}

		fileInfo, err := entry.Info()
		if err != nil {
			logger.Error("could not stat file", "path", path, "err", err.Error())
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Error("could not read file", "path", path, "err", err.Error())
			return nil
		}

		files = append(files, SourceFile{
			Path:       rel,
			Content:    content,
			ModifiedAt: fileInfo.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("discovered files", "root", rootPath, "num_of_files", len(files))
	return files, nil
}

// Assumes current path is clean and slash-separated
func isInExcludedPath(currentPath string, excludeSet map[string]struct{}) bool {
	if len(excludeSet) == 0 {
		return false
	}
	_, ok := excludeSet[currentPath]
	return ok
}
