package imgfit

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var supported = regexp.MustCompile(`(?i)\.jpe?g$`)

// Naming selects how output file names are derived from source files.
type Naming int

const (
	// NameBase names the output <base>.jpg.
	NameBase Naming = iota
	// NamePrefixed names the output compressed_<source file name>.
	NamePrefixed
)

const outputPrefix = "compressed_"

var namingNames = map[Naming]string{
	NameBase:     "base",
	NamePrefixed: "prefixed",
}

func (n Naming) String() string {
	if name, ok := namingNames[n]; ok {
		return name
	}
	return "unknown"
}

// OutputName returns the output file name for the source file src.
func (n Naming) OutputName(src string) string {
	name := filepath.Base(src)
	if n == NamePrefixed {
		return outputPrefix + name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}

// IsJPEG reports whether name has a JPEG extension.
func IsJPEG(name string) bool {
	return supported.MatchString(name)
}

// ListImages returns the JPEG files directly inside dir sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsJPEG(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
