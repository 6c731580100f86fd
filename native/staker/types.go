package staker

import (
	"encoding/binary"

	"lmstaker/crypto"
)

// ProgramKind distinguishes plain incentives from voting-power boosted ones.
type ProgramKind uint8

const (
	// ProgramStandard pays rewards proportional to raw liquidity-seconds.
	ProgramStandard ProgramKind = iota
	// ProgramBoosted dampens liquidity by the owner's governance voting power.
	ProgramBoosted
)

func (k ProgramKind) String() string {
	switch k {
	case ProgramStandard:
		return "standard"
	case ProgramBoosted:
		return "boosted"
	default:
		return "unknown"
	}
}

// Program is the tagged reward formula of an incentive. Locker is only
// meaningful for ProgramBoosted.
type Program struct {
	Kind   ProgramKind `json:"kind"`
	Locker [20]byte    `json:"locker,omitempty"`
}

// StandardProgram returns the plain reward formula.
func StandardProgram() Program { return Program{Kind: ProgramStandard} }

// BoostedProgram returns the boosted formula bound to a governance locker.
func BoostedProgram(locker [20]byte) Program {
	return Program{Kind: ProgramBoosted, Locker: locker}
}

// BoostLocker returns the locker reference when the program is boosted.
func (p Program) BoostLocker() ([20]byte, bool) {
	if p.Kind != ProgramBoosted {
		return [20]byte{}, false
	}
	return p.Locker, true
}

// IncentiveKey is the identity of an incentive.
type IncentiveKey struct {
	RewardToken [20]byte `json:"rewardToken"`
	Pool        [20]byte `json:"pool"`
	Refundee    [20]byte `json:"refundee"`
	StartTime   int64    `json:"startTime"`
	EndTime     int64    `json:"endTime"`
}

// ID derives the deterministic incentive identifier.
func (k IncentiveKey) ID() [32]byte {
	var start, end [8]byte
	binary.BigEndian.PutUint64(start[:], uint64(k.StartTime))
	binary.BigEndian.PutUint64(end[:], uint64(k.EndTime))
	var id [32]byte
	copy(id[:], crypto.Keccak256(
		[]byte("Incentive"),
		k.RewardToken[:],
		k.Pool[:],
		k.Refundee[:],
		start[:],
		end[:],
	))
	return id
}

// Incentive is a time-bounded reward program for one pool and reward token.
type Incentive struct {
	ID                     [32]byte `json:"id"`
	RewardToken            [20]byte `json:"rewardToken"`
	Pool                   [20]byte `json:"pool"`
	Refundee               [20]byte `json:"refundee"`
	StartTime              int64    `json:"startTime"`
	EndTime                int64    `json:"endTime"`
	TotalRewardUnclaimed   uint64   `json:"totalRewardUnclaimed"`
	TotalSecondsClaimedX32 uint64   `json:"totalSecondsClaimedX32"`
	NumberOfStakes         uint32   `json:"numberOfStakes"`
	Program                Program  `json:"program"`
}

// Key returns the identity tuple of the incentive.
func (i *Incentive) Key() IncentiveKey {
	return IncentiveKey{
		RewardToken: i.RewardToken,
		Pool:        i.Pool,
		Refundee:    i.Refundee,
		StartTime:   i.StartTime,
		EndTime:     i.EndTime,
	}
}

// Clone returns a copy of the incentive.
func (i *Incentive) Clone() *Incentive {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}

// Deposit is a custodied liquidity position.
type Deposit struct {
	Mint           [20]byte `json:"mint"`
	Owner          [20]byte `json:"owner"`
	NumberOfStakes uint32   `json:"numberOfStakes"`
	TickLower      int32    `json:"tickLower"`
	TickUpper      int32    `json:"tickUpper"`
}

func (d *Deposit) Clone() *Deposit {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}

// Stake links one deposit to one incentive between stake and unstake.
type Stake struct {
	Mint                                [20]byte `json:"mint"`
	Incentive                           [32]byte `json:"incentive"`
	Liquidity                           uint64   `json:"liquidity"`
	SecondsPerLiquidityInsideInitialX32 uint64   `json:"secondsPerLiquidityInsideInitialX32"`
}

func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// RewardAccount is the claimable balance of one owner in one reward token.
type RewardAccount struct {
	RewardToken [20]byte `json:"rewardToken"`
	Owner       [20]byte `json:"owner"`
	RewardsOwed uint64   `json:"rewardsOwed"`
}

func (r *RewardAccount) Clone() *RewardAccount {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Position is the AMM's view of a tokenized liquidity position.
type Position struct {
	Mint      [20]byte `json:"mint"`
	Pool      [20]byte `json:"pool"`
	TickLower int32    `json:"tickLower"`
	TickUpper int32    `json:"tickUpper"`
	Liquidity uint64   `json:"liquidity"`
}

// RangeSnapshot is the cumulative seconds-per-liquidity inside a tick range.
type RangeSnapshot struct {
	SecondsPerLiquidityInsideX32 uint64 `json:"secondsPerLiquidityInsideX32"`
	// ObservedAt is the unix time of the AMM observation backing the value.
	ObservedAt int64 `json:"observedAt"`
}

// LockerParams are the governance locker constants consumed by the boost.
type LockerParams struct {
	LockedSupply      uint64 `json:"lockedSupply"`
	MaxVoteMultiplier uint64 `json:"maxVoteMultiplier"`
}

// UnstakeResult reports what an unstake credited.
type UnstakeResult struct {
	Mint             [20]byte `json:"mint"`
	Incentive        [32]byte `json:"incentive"`
	Owner            [20]byte `json:"owner"`
	Reward           uint64   `json:"reward"`
	SecondsInsideX32 uint64   `json:"secondsInsideX32"`
}

// RewardPreview is the reward an unstake would credit at the preview time.
type RewardPreview struct {
	RewardOwed
	Liquidity          uint64 `json:"liquidity"`
	EffectiveLiquidity uint64 `json:"effectiveLiquidity"`
	BoostPercent       int64  `json:"boostPercent"`
	At                 int64  `json:"at"`
}

func isZeroAddress(addr [20]byte) bool {
	return addr == [20]byte{}
}
