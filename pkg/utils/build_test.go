package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/mod/semver"
)

func TestVersionIsSemantic(t *testing.T) {
	if Version == "unknown" {
		t.Skip("Version is only set through -ldflags on release builds.")
	}
	assert.Truef(t, semver.IsValid(Version), "Version %s is not a valid semantic version", Version)
}
