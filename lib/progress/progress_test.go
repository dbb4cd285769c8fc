package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	ledger, err := Open(":memory:")
	require.NoError(t, err)
	defer ledger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	unit := Unit{CaseType: "C.A.", Registry: "Lahore", Year: 2020, Page: 3}

	done, err := ledger.IsComplete(ctx, unit)
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, ledger.MarkComplete(ctx, unit))
	// marking twice must not fail
	require.NoError(t, ledger.MarkComplete(ctx, unit))

	done, err = ledger.IsComplete(ctx, unit)
	require.NoError(t, err)
	require.True(t, done)

	require.NoError(t, ledger.MarkComplete(ctx, Unit{
		CaseType: "C.A.", Registry: "Lahore", Year: 2020, Page: 1,
	}))
	require.NoError(t, ledger.MarkComplete(ctx, Unit{
		CaseType: "C.A.", Registry: "Karachi", Year: 2020, Page: 9,
	}))

	pages, err := ledger.CompletedPages(ctx, "C.A.", "Lahore", 2020)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, pages)
}
