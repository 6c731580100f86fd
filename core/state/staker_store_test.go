package state

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lmstaker/core/events"
	"lmstaker/native/staker"
	"lmstaker/storage"
)

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestStakerRecordsRoundTrip(t *testing.T) {
	store := NewStakerStore(storage.NewMemDB())

	inc := &staker.Incentive{
		ID:                     [32]byte{9},
		RewardToken:            addr(1),
		Pool:                   addr(2),
		Refundee:               addr(3),
		StartTime:              1_700_000_000,
		EndTime:                1_700_000_100,
		TotalRewardUnclaimed:   42,
		TotalSecondsClaimedX32: 7 << 32,
		NumberOfStakes:         3,
		Program:                staker.BoostedProgram(addr(4)),
	}
	dep := &staker.Deposit{Mint: addr(5), Owner: addr(6), NumberOfStakes: 1, TickLower: -887220, TickUpper: -60}
	stake := &staker.Stake{Mint: addr(5), Incentive: inc.ID, Liquidity: 99, SecondsPerLiquidityInsideInitialX32: 123}
	acct := &staker.RewardAccount{RewardToken: addr(1), Owner: addr(6), RewardsOwed: 77}

	require.NoError(t, store.Update(func(tx *StakerTx) error {
		require.NoError(t, tx.PutIncentive(inc))
		require.NoError(t, tx.PutDeposit(dep))
		require.NoError(t, tx.PutStake(stake))
		return tx.PutRewardAccount(acct)
	}))

	tx, err := store.Begin()
	require.NoError(t, err)
	defer tx.Discard()

	gotInc, ok, err := tx.Incentive(inc.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, inc, gotInc)

	gotDep, ok, err := tx.Deposit(dep.Mint)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, dep, gotDep)

	gotStake, ok, err := tx.Stake(stake.Mint, stake.Incentive)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, stake, gotStake)

	gotAcct, ok, err := tx.RewardAccount(acct.RewardToken, acct.Owner)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, acct, gotAcct)

	_, ok, err = tx.Deposit(addr(0xEE))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStakerQueries(t *testing.T) {
	store := NewStakerStore(storage.NewMemDB())
	owner := addr(6)
	require.NoError(t, store.Update(func(tx *StakerTx) error {
		require.NoError(t, tx.PutDeposit(&staker.Deposit{Mint: addr(5), Owner: owner}))
		require.NoError(t, tx.PutDeposit(&staker.Deposit{Mint: addr(7), Owner: addr(8)}))
		require.NoError(t, tx.PutStake(&staker.Stake{Mint: addr(5), Incentive: [32]byte{1}, Liquidity: 1}))
		require.NoError(t, tx.PutStake(&staker.Stake{Mint: addr(5), Incentive: [32]byte{2}, Liquidity: 2}))
		require.NoError(t, tx.PutStake(&staker.Stake{Mint: addr(7), Incentive: [32]byte{1}, Liquidity: 3}))
		require.NoError(t, tx.PutRewardAccount(&staker.RewardAccount{RewardToken: addr(1), Owner: owner, RewardsOwed: 1}))
		require.NoError(t, tx.PutRewardAccount(&staker.RewardAccount{RewardToken: addr(2), Owner: owner, RewardsOwed: 2}))
		require.NoError(t, tx.PutRewardAccount(&staker.RewardAccount{RewardToken: addr(1), Owner: addr(8), RewardsOwed: 3}))
		require.NoError(t, tx.PutIncentive(&staker.Incentive{ID: [32]byte{2}}))
		return tx.PutIncentive(&staker.Incentive{ID: [32]byte{1}})
	}))

	deposits, err := store.DepositsOf(owner)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	require.Equal(t, addr(5), deposits[0].Mint)

	stakes, err := store.StakesOf(addr(5))
	require.NoError(t, err)
	require.Len(t, stakes, 2)

	accounts, err := store.RewardAccountsOf(owner)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	incentives, err := store.Incentives()
	require.NoError(t, err)
	require.Len(t, incentives, 2)
	require.Equal(t, [32]byte{1}, incentives[0].ID)
}

func TestStakerTxDiscardDropsWrites(t *testing.T) {
	store := NewStakerStore(storage.NewMemDB())
	tx, err := store.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.PutDeposit(&staker.Deposit{Mint: addr(5), Owner: addr(6)}))
	tx.Discard()

	deposits, err := store.DepositsOf(addr(6))
	require.NoError(t, err)
	require.Empty(t, deposits)

	// the store lock is released after discard
	tx, err = store.Begin()
	require.NoError(t, err)
	tx.Discard()
}

func TestCustodyTransfers(t *testing.T) {
	store := NewStakerStore(storage.NewMemDB())
	token := addr(1)
	require.NoError(t, store.Mint(token, addr(2), 100))

	err := store.Update(func(tx *StakerTx) error {
		return tx.Transfer(token, addr(2), addr(3), 101)
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	require.NoError(t, store.Update(func(tx *StakerTx) error {
		if err := tx.Transfer(token, addr(2), addr(3), 60); err != nil {
			return err
		}
		return tx.Burn(token, addr(3), 10)
	}))

	bal, err := store.Balance(token, addr(2))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(40), bal)
	bal, err = store.Balance(token, addr(3))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(50), bal)

	err = store.Update(func(tx *StakerTx) error { return tx.Burn(token, addr(4), 1) })
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestSelfTransferRequiresBalance(t *testing.T) {
	store := NewStakerStore(storage.NewMemDB())
	token, vault := addr(1), addr(9)

	err := store.Update(func(tx *StakerTx) error { return tx.Transfer(token, vault, vault, 5000) })
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.ErrorIs(t, err, staker.ErrPrecondition)

	require.NoError(t, store.Mint(token, vault, 5000))
	require.NoError(t, store.Update(func(tx *StakerTx) error { return tx.Transfer(token, vault, vault, 5000) }))
	bal, err := store.Balance(token, vault)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5000), bal)
}

func TestFeedsServeOracleAndLocker(t *testing.T) {
	feeds := NewFeeds(storage.NewMemDB())
	pool := addr(2)

	_, ok, err := feeds.Position(addr(5))
	require.NoError(t, err)
	require.False(t, ok)

	pos := &staker.Position{Mint: addr(5), Pool: pool, TickLower: -120, TickUpper: 60, Liquidity: 10}
	require.NoError(t, feeds.PutPosition(pos))
	got, ok, err := feeds.Position(addr(5))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pos, got)
	require.Error(t, feeds.PutPosition(&staker.Position{Mint: addr(6), TickLower: 5, TickUpper: 5}))

	require.NoError(t, feeds.PutSnapshot(pool, -120, 60, staker.RangeSnapshot{SecondsPerLiquidityInsideX32: 50, ObservedAt: 1000}))
	require.Error(t, feeds.PutSnapshot(pool, -120, 60, staker.RangeSnapshot{SecondsPerLiquidityInsideX32: 49, ObservedAt: 1001}))
	snap, err := feeds.SnapshotInside(pool, -120, 60)
	require.NoError(t, err)
	require.Equal(t, staker.RangeSnapshot{SecondsPerLiquidityInsideX32: 50, ObservedAt: 1000}, snap)
	other, err := feeds.SnapshotInside(pool, -60, 60)
	require.NoError(t, err)
	require.Zero(t, other.SecondsPerLiquidityInsideX32)

	require.NoError(t, feeds.PutPoolLiquidity(pool, 1234))
	liq, err := feeds.PoolLiquidity(pool)
	require.NoError(t, err)
	require.Equal(t, uint64(1234), liq)

	params := staker.LockerParams{LockedSupply: 1000, MaxVoteMultiplier: 10}
	require.NoError(t, feeds.PutLockerParams(addr(8), params))
	gotParams, ok, err := feeds.LockerParams(addr(8))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, params, gotParams)
	require.NoError(t, feeds.PutVotingPower(addr(8), addr(6), 634))
	power, err := feeds.VotingPower(addr(8), addr(6), 0)
	require.NoError(t, err)
	require.Equal(t, uint64(634), power)
}

func TestEngineOnLevelDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staker")
	db, err := storage.NewLevelDB(path)
	require.NoError(t, err)

	store := NewStakerStore(db)
	feeds := NewFeeds(db)
	vault, token, pool, refundee, owner, mint := addr(0xAA), addr(1), addr(2), addr(3), addr(4), addr(5)
	now := int64(1_000_000)

	rec := &events.Recorder{}
	engine := staker.NewEngine()
	engine.SetBackend(store)
	engine.SetPoolOracle(feeds)
	engine.SetLocker(feeds)
	engine.SetVault(vault)
	engine.SetEmitter(rec)
	engine.SetNowFunc(func() int64 { return now })

	require.NoError(t, store.Mint(token, refundee, 1000))
	require.NoError(t, store.Mint(mint, owner, 1))
	require.NoError(t, feeds.PutPosition(&staker.Position{Mint: mint, Pool: pool, TickLower: -60, TickUpper: 60, Liquidity: 10}))

	inc, err := engine.CreateIncentive(staker.IncentiveKey{
		RewardToken: token, Pool: pool, Refundee: refundee, StartTime: now + 10, EndTime: now + 110,
	})
	require.NoError(t, err)
	_, err = engine.AddReward(refundee, inc.ID, 1000)
	require.NoError(t, err)
	_, err = engine.CreateDeposit(owner, mint)
	require.NoError(t, err)

	now = inc.StartTime
	require.NoError(t, feeds.PutSnapshot(pool, -60, 60, staker.RangeSnapshot{ObservedAt: now}))
	_, err = engine.Stake(owner, mint, inc.ID)
	require.NoError(t, err)

	_, err = engine.Stake(owner, mint, inc.ID)
	require.ErrorIs(t, err, staker.ErrStakeExists)

	now = inc.EndTime
	require.NoError(t, feeds.PutSnapshot(pool, -60, 60, staker.RangeSnapshot{SecondsPerLiquidityInsideX32: (100 << 32) / 10, ObservedAt: now}))
	res, err := engine.Unstake(owner, mint, inc.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), res.Reward)

	paid, err := engine.ClaimReward(owner, token, 0, owner)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), paid)
	require.NoError(t, engine.WithdrawDeposit(owner, mint, owner))

	db.Close()
	reopened, err := storage.NewLevelDB(path)
	require.NoError(t, err)
	defer reopened.Close()

	store = NewStakerStore(reopened)
	bal, err := store.Balance(token, owner)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), bal)
	bal, err = store.Balance(mint, owner)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), bal)
	incentives, err := store.Incentives()
	require.NoError(t, err)
	require.Len(t, incentives, 1)
	require.Zero(t, incentives[0].TotalRewardUnclaimed)
	require.Equal(t, []string{
		staker.EventTypeIncentiveCreated,
		staker.EventTypeRewardAdded,
		staker.EventTypeDepositTransferred,
		staker.EventTypeStakeOpened,
		staker.EventTypeStakeClosed,
		staker.EventTypeRewardClaimed,
		staker.EventTypeDepositTransferred,
	}, rec.Types())
}
