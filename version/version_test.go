package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgentCarriesModuleName(t *testing.T) {
	assert.True(t, strings.HasPrefix(UserAgent(), "nrp-go-client/"))
}

func TestClientVersionFallsBackToDevOutsideVersionedBuild(t *testing.T) {
	assert.Equal(t, "dev", ClientVersion())
}
