// Package gitinfo resolves best-effort git provenance for result stamping.
package gitinfo

import (
	"os/exec"
	"strings"
)

// ShortCommit returns the short commit hash of the working tree, or an
// empty string when git is unavailable or the directory is not a repo.
// Result records stay usable either way.
func ShortCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
