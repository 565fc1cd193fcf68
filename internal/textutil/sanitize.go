package textutil

import (
	"path/filepath"
	"strings"
)

// Separators become dashes; characters Windows and SMB shares reject are
// dropped.
var fileNameReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-",
	"?", "", "\"", "", "<", "", ">", "", "|", "",
)

// SanitizeFileName makes name safe to use as a single path component.
func SanitizeFileName(name string) string {
	return strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
}

// FileStem returns the sanitized base name of path without its extension,
// or "video" when nothing usable remains.
func FileStem(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	stem := SanitizeFileName(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" || stem == "." {
		return "video"
	}
	return stem
}
