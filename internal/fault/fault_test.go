package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExpected verifies only the benign sentinels pass the allow-list,
// wrapped or not.
func TestExpected(t *testing.T) {
	require.True(t, Expected(ErrStreamGone))
	require.True(t, Expected(ErrStreamBusy))
	require.True(t, Expected(fmt.Errorf("flush aborted: %w", ErrStreamBusy)))

	require.False(t, Expected(nil))
	require.False(t, Expected(errors.New("disk on fire")))
}
