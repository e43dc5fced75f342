package tools

import (
	"io"
	"os"
	"path/filepath"

	"github.com/golang/glog"
)

func OpenFileOrFail(filePath string) *os.File {
	file, err := os.Open(filePath)
	if err != nil {
		glog.Fatal(err)
	}
	return file
}

func CreateDirectoryIfDoesNotExist(directory string) error {
	if _, err := os.Stat(directory); os.IsNotExist(err) {
		return os.MkdirAll(directory, 0777)
	}
	return nil
}

// WriteBinaryFile writes a container through a temp file in the target
// directory and renames it into place, so an aborted run never leaves a
// partially written file behind.
func WriteBinaryFile(path string, write func(ws io.WriteSeeker) error) error {
	if err := CreateDirectoryIfDoesNotExist(filepath.Dir(path)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
