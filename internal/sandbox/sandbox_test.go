package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gardenerik/parent/internal/model"
)

func TestConfinementStagesOrder(t *testing.T) {
	assert := assert.New(t)

	// The order is a correctness requirement, any reordering silently breaks
	// the confinement guarantees (see the Run doc comment).
	expOrder := []string{
		"stream redirection",
		"resource limits",
		"filesystem access",
		"capability drop",
		"syscall filter",
	}

	stages := confinementStages(model.SandboxConfig{})

	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.name)
	}

	assert.Equal(expOrder, names)
}
