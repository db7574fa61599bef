package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewProducesValidSortedIDs(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()

	_, err := Parse(a.String())
	require.NoError(t, err)
	_, err = Parse(b.String())
	require.NoError(t, err)

	// Monotonic entropy keeps same-millisecond IDs ordered.
	require.Less(t, a.String(), b.String())
}

func TestParseRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "   ", "not-a-ulid", "0000000000000000000000000!"} {
		_, err := Parse(s)
		require.ErrorIs(t, err, ErrInvalid)
	}
}

func TestNewAtEmbedsTimestamp(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	id := NewAt(at)
	require.Equal(t, at, id.Time())
}
