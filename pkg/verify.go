package pkg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"

	"github.com/FLYPoPo7/cdb-to-3dtiles/internal/tileformat"
	"github.com/FLYPoPo7/cdb-to-3dtiles/tools"
)

// Verifier re-opens the containers of a previous conversion and checks the
// format invariants: magic, version, total byte length against file size and
// 8 byte section alignment.
type Verifier struct {
	fileFinder tools.FileFinder
}

func NewVerifier(fileFinder tools.FileFinder) *Verifier {
	return &Verifier{fileFinder: fileFinder}
}

// Run walks the output tree and validates every .b3dm, .i3dm, .cmpt and
// .subtree file. It returns an error when any container is malformed.
func (v *Verifier) Run(outputDir string) error {
	checked := 0
	failed := 0

	for _, ext := range []string{".b3dm", ".i3dm", ".cmpt", ".subtree"} {
		for _, path := range v.fileFinder.GetFilesWithExtension(outputDir, ext) {
			checked++
			if err := verifyContainerFile(path); err != nil {
				failed++
				glog.Errorf("invalid container %s: %v", path, err)
			}
		}
	}

	tools.LogOutput(fmt.Sprintf("verified %d containers, %d invalid", checked, failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d containers failed verification", failed, checked)
	}
	return nil
}

func verifyContainerFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".subtree") {
		_, err := tileformat.ValidateSubtree(data)
		return err
	}
	_, err = tileformat.ValidateTile(data)
	return err
}
