package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFriendlyVersion(t *testing.T) {
	v, c := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = v, c })

	Version, GitCommit = "1.2.3", "abc123"
	assert.Equal(t, "1.2.3 (abc123)", FriendlyVersion())
}
