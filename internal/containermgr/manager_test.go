package containermgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesPrefixStripsLeadingSlash(t *testing.T) {
	assert.True(t, matchesPrefix("/codescord-3f9a", "codescord-"))
	assert.True(t, matchesPrefix("codescord-3f9a", "codescord-"))
}

func TestMatchesPrefixRejectsUnrelatedNames(t *testing.T) {
	assert.False(t, matchesPrefix("/other-service", "codescord-"))
	assert.False(t, matchesPrefix("/cs", "codescord-"))
}

func TestNewDoesNotNeedReachableDockerHost(t *testing.T) {
	// client.NewClientWithOpts only fails on malformed options, not on an
	// unreachable daemon, so constructing a Manager never fails here; a live
	// Docker daemon is only needed once Start/Stop/Sweep actually run.
	mgr, err := New(Config{Image: "codescord", ContainerPort: 6090}, nil)
	if err != nil {
		t.Skipf("docker client construction failed in this environment: %v", err)
	}
	defer mgr.Close()
	assert.Equal(t, "codescord", mgr.image)
	assert.Equal(t, 6090, mgr.containerPort)
}
