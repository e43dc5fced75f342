package tools

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"
)

// FileFinder enumerates directories and tile files of a CDB tree. Results are
// sorted so traversal order, and with it the emitted tileset structure, is
// deterministic.
type FileFinder interface {
	GetSubdirectories(dir string) []string
	GetFilesWithExtension(dir string, ext string) []string
}

type StandardFileFinder struct{}

func NewStandardFileFinder() FileFinder {
	return &StandardFileFinder{}
}

func (f *StandardFileFinder) GetSubdirectories(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		glog.Warningf("cannot list %s: %v", dir, err)
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

func (f *StandardFileFinder) GetFilesWithExtension(dir string, ext string) []string {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.EqualFold(filepath.Ext(info.Name()), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		glog.Warningf("cannot walk %s: %v", dir, err)
	}
	sort.Strings(files)
	return files
}
