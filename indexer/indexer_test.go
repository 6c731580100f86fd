package indexer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lmstaker/native/staker"
)

func openTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }

func TestEmitPersistsPayloads(t *testing.T) {
	idx := openTestIndexer(t)
	idx.nowFn = func() time.Time { return time.Unix(1_700_000_000, 0) }

	idx.Emit(staker.RewardAdded{Incentive: [32]byte{1}, Reward: 1000})
	idx.Emit(staker.StakeOpened{Incentive: [32]byte{1}, Liquidity: 10})
	idx.Emit(bareEvent{})

	records, err := idx.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, staker.EventTypeStakeOpened, records[0].Type)
	require.Equal(t, "10", records[0].Attributes["liquidity"])
	require.Equal(t, staker.EventTypeRewardAdded, records[1].Type)
	require.Equal(t, "1000", records[1].Attributes["reward"])
	require.Equal(t, int64(1_700_000_000), records[1].RecordedAt.Unix())
	require.Greater(t, records[0].ID, records[1].ID)
}

func TestRecentFiltersAndLimits(t *testing.T) {
	idx := openTestIndexer(t)
	for i := 0; i < 5; i++ {
		idx.Emit(staker.RewardClaimed{Reward: uint64(i)})
	}
	idx.Emit(staker.IncentiveEnded{Refund: 9})

	claimed, err := idx.Recent(context.Background(), staker.EventTypeRewardClaimed, 3)
	require.NoError(t, err)
	require.Len(t, claimed, 3)
	require.Equal(t, "4", claimed[0].Attributes["reward"])

	ended, err := idx.Recent(context.Background(), staker.EventTypeIncentiveEnded, 10)
	require.NoError(t, err)
	require.Len(t, ended, 1)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.ErrorIs(t, err, ErrPathRequired)
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	idx, err := Open(path)
	require.NoError(t, err)
	idx.Emit(staker.RewardAdded{Reward: 1})
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()
	records, err := idx.Recent(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
}
