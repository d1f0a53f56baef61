package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	assert.Equal(t, Info{Version: "dev", GitSHA: "unknown", BuildTime: "unknown"}, Get())
	assert.Equal(t, "dev (unknown, built unknown)", Get().String())
}
