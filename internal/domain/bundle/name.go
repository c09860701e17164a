package bundle

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// separatorRun matches the separators that are equivalent in package names.
var separatorRun = regexp.MustCompile(`[-_.]+`)

// CanonicalName folds case and collapses every run of "-", "_" and "." into a
// single "-", so "Typing_Extensions" and "typing-extensions" compare equal.
func CanonicalName(name string) string {
	folded := cases.Fold().String(strings.TrimSpace(name))

	return separatorRun.ReplaceAllString(folded, "-")
}

// ArtifactName returns the canonical package name encoded in an artifact
// file name: the prefix before the first "-" ("numpy-2.0.2-cp312-...whl" -> "numpy").
func ArtifactName(fileName string) string {
	base := filepath.Base(fileName)

	prefix, _, found := strings.Cut(base, "-")
	if !found {
		prefix = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return CanonicalName(prefix)
}
