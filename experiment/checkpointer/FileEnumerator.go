package checkpointer

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// IterationFilename returns a function which returns filenames with an
// iteration suffix: dir/<prefix>_<iteration><extension>
func IterationFilename(dir, prefix, extension string) func(int) string {
	return func(iteration int) string {
		return filepath.Join(dir, fmt.Sprintf("%v_%v%v", prefix, iteration,
			extension))
	}
}

// IterationFromFilename returns the iteration encoded in a filename
// produced by IterationFilename, i.e. the text between the first
// underscore and the extension of the file's base name. For example,
// runs/a/full_1500.gob is iteration 1500.
func IterationFromFilename(filename string) (int, error) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	sep := strings.Index(base, "_")
	if sep < 0 {
		return 0, fmt.Errorf("iterationfromfilename: no iteration in %v",
			filename)
	}

	iteration, err := strconv.Atoi(base[sep+1:])
	if err != nil {
		return 0, fmt.Errorf("iterationfromfilename: %v: %w", filename, err)
	}
	if iteration < 0 {
		return 0, fmt.Errorf("iterationfromfilename: negative iteration %v",
			iteration)
	}
	return iteration, nil
}
