package unpack

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// Stats reports how many messages a downloaded gettext file carries and
// how many of them are translated. Supports .po, .pot and .mo files.
func Stats(path string) (total, translated int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("reading %s: %w", path, err)
	}

	var dom *gotext.Domain
	switch strings.ToLower(filepath.Ext(path)) {
	case ".po", ".pot":
		po := gotext.NewPo()
		po.Parse(data)
		dom = po.GetDomain()
	case ".mo":
		mo := gotext.NewMo()
		mo.Parse(data)
		dom = mo.GetDomain()
	default:
		return 0, 0, fmt.Errorf("%s: not a gettext file", path)
	}

	for id, tr := range dom.GetTranslations() {
		if id == "" {
			// Header entry.
			continue
		}
		total++
		if tr.IsTranslated() {
			translated++
		}
	}
	return total, translated, nil
}

// IsGettextFile reports whether Stats understands the file.
func IsGettextFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".po", ".pot", ".mo":
		return true
	}
	return false
}
