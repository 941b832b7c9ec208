package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseNamesRunbookOrder(t *testing.T) {
	assert.Equal(t, []string{
		"categories", "attributes", "materials", "products",
		"attribute-values", "images", "stock", "sets",
	}, PhaseNames())
}

func TestRunUnknownPhase(t *testing.T) {
	_, err := Run(context.Background(), &Runner{}, "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown phase "frobnicate"`)
}

func TestEnsureTargetSchemaIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t) // first EnsureTargetSchema happens here
	require.NoError(t, EnsureTargetSchema(ctx, r.Target, "sqlite"))
}

// A dependent phase invoked before products fails loudly instead of writing
// nothing.
func TestDependentPhaseWithoutArtifact(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t)

	_, err := RunImages(ctx, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did the products phase run?")
}
