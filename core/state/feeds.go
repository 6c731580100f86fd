package state

import (
	"fmt"

	"lmstaker/native/staker"
	"lmstaker/storage"
)

// Feeds holds operator supplied AMM and governance snapshots and serves them
// to the engine as its PoolOracle and Locker.
type Feeds struct {
	db storage.Database
}

var (
	_ staker.PoolOracle = (*Feeds)(nil)
	_ staker.Locker     = (*Feeds)(nil)
)

// NewFeeds wraps db.
func NewFeeds(db storage.Database) *Feeds {
	return &Feeds{db: db}
}

func (f *Feeds) records() records { return records{kv: f.db} }

// PutPosition records the AMM view of a position mint.
func (f *Feeds) PutPosition(pos *staker.Position) error {
	if pos == nil {
		return errNilRecord
	}
	if pos.TickLower >= pos.TickUpper {
		return fmt.Errorf("feeds: tick lower %d must be below tick upper %d", pos.TickLower, pos.TickUpper)
	}
	return f.records().put(positionFeedKey(pos.Mint), newStoredPosition(pos))
}

// Position implements staker.PoolOracle.
func (f *Feeds) Position(mint [20]byte) (*staker.Position, bool, error) {
	stored := new(storedPosition)
	ok, err := f.records().get(positionFeedKey(mint), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toPosition(), true, nil
}

// PutSnapshot records the cumulative seconds-per-liquidity of a tick range.
// The cumulative value may never decrease.
func (f *Feeds) PutSnapshot(pool [20]byte, lower, upper int32, snapshot staker.RangeSnapshot) error {
	current, err := f.SnapshotInside(pool, lower, upper)
	if err != nil {
		return err
	}
	if snapshot.SecondsPerLiquidityInsideX32 < current.SecondsPerLiquidityInsideX32 {
		return fmt.Errorf("feeds: cumulative seconds per liquidity must not decrease (%d < %d)",
			snapshot.SecondsPerLiquidityInsideX32, current.SecondsPerLiquidityInsideX32)
	}
	return f.records().put(rangeFeedKey(pool, lower, upper), &storedSnapshot{
		SecondsPerLiquidityInsideX32: snapshot.SecondsPerLiquidityInsideX32,
		ObservedAt:                   uint64(snapshot.ObservedAt),
	})
}

// SnapshotInside implements staker.PoolOracle. A range never observed reports
// a zero cumulative.
func (f *Feeds) SnapshotInside(pool [20]byte, lower, upper int32) (staker.RangeSnapshot, error) {
	stored := new(storedSnapshot)
	ok, err := f.records().get(rangeFeedKey(pool, lower, upper), stored)
	if err != nil || !ok {
		return staker.RangeSnapshot{}, err
	}
	return staker.RangeSnapshot{
		SecondsPerLiquidityInsideX32: stored.SecondsPerLiquidityInsideX32,
		ObservedAt:                   int64(stored.ObservedAt),
	}, nil
}

// PutPoolLiquidity records the in-range liquidity of pool.
func (f *Feeds) PutPoolLiquidity(pool [20]byte, liquidity uint64) error {
	return f.records().put(poolLiquidityFeedKey(pool), liquidity)
}

// PoolLiquidity implements staker.PoolOracle.
func (f *Feeds) PoolLiquidity(pool [20]byte) (uint64, error) {
	var liquidity uint64
	if _, err := f.records().get(poolLiquidityFeedKey(pool), &liquidity); err != nil {
		return 0, err
	}
	return liquidity, nil
}

// PutLockerParams records the constants of a governance locker.
func (f *Feeds) PutLockerParams(locker [20]byte, params staker.LockerParams) error {
	return f.records().put(lockerFeedKey(locker), &params)
}

// LockerParams implements staker.Locker.
func (f *Feeds) LockerParams(locker [20]byte) (staker.LockerParams, bool, error) {
	var params staker.LockerParams
	ok, err := f.records().get(lockerFeedKey(locker), &params)
	return params, ok, err
}

// PutVotingPower records the voting power owner holds in locker.
func (f *Feeds) PutVotingPower(locker, owner [20]byte, power uint64) error {
	return f.records().put(votingPowerFeedKey(locker, owner), power)
}

// VotingPower implements staker.Locker. The feed holds the latest value, so the
// requested time is not consulted.
func (f *Feeds) VotingPower(locker, owner [20]byte, _ int64) (uint64, error) {
	var power uint64
	if _, err := f.records().get(votingPowerFeedKey(locker, owner), &power); err != nil {
		return 0, err
	}
	return power, nil
}
