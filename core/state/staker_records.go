package state

import (
	"math/big"

	"lmstaker/native/staker"
)

// RLP has no signed integers; times and ticks are persisted as their unsigned
// two's complement bit patterns.

type storedIncentive struct {
	ID                     [32]byte
	RewardToken            [20]byte
	Pool                   [20]byte
	Refundee               [20]byte
	StartTime              uint64
	EndTime                uint64
	TotalRewardUnclaimed   uint64
	TotalSecondsClaimedX32 uint64
	NumberOfStakes         uint32
	ProgramKind            uint8
	Locker                 [20]byte
}

func newStoredIncentive(inc *staker.Incentive) *storedIncentive {
	return &storedIncentive{
		ID:                     inc.ID,
		RewardToken:            inc.RewardToken,
		Pool:                   inc.Pool,
		Refundee:               inc.Refundee,
		StartTime:              uint64(inc.StartTime),
		EndTime:                uint64(inc.EndTime),
		TotalRewardUnclaimed:   inc.TotalRewardUnclaimed,
		TotalSecondsClaimedX32: inc.TotalSecondsClaimedX32,
		NumberOfStakes:         inc.NumberOfStakes,
		ProgramKind:            uint8(inc.Program.Kind),
		Locker:                 inc.Program.Locker,
	}
}

func (s *storedIncentive) toIncentive() *staker.Incentive {
	program := staker.StandardProgram()
	if staker.ProgramKind(s.ProgramKind) == staker.ProgramBoosted {
		program = staker.BoostedProgram(s.Locker)
	}
	return &staker.Incentive{
		ID:                     s.ID,
		RewardToken:            s.RewardToken,
		Pool:                   s.Pool,
		Refundee:               s.Refundee,
		StartTime:              int64(s.StartTime),
		EndTime:                int64(s.EndTime),
		TotalRewardUnclaimed:   s.TotalRewardUnclaimed,
		TotalSecondsClaimedX32: s.TotalSecondsClaimedX32,
		NumberOfStakes:         s.NumberOfStakes,
		Program:                program,
	}
}

type storedDeposit struct {
	Mint           [20]byte
	Owner          [20]byte
	NumberOfStakes uint32
	TickLower      uint32
	TickUpper      uint32
}

func newStoredDeposit(dep *staker.Deposit) *storedDeposit {
	return &storedDeposit{
		Mint:           dep.Mint,
		Owner:          dep.Owner,
		NumberOfStakes: dep.NumberOfStakes,
		TickLower:      uint32(dep.TickLower),
		TickUpper:      uint32(dep.TickUpper),
	}
}

func (s *storedDeposit) toDeposit() *staker.Deposit {
	return &staker.Deposit{
		Mint:           s.Mint,
		Owner:          s.Owner,
		NumberOfStakes: s.NumberOfStakes,
		TickLower:      int32(s.TickLower),
		TickUpper:      int32(s.TickUpper),
	}
}

type storedPosition struct {
	Mint      [20]byte
	Pool      [20]byte
	TickLower uint32
	TickUpper uint32
	Liquidity uint64
}

func newStoredPosition(pos *staker.Position) *storedPosition {
	return &storedPosition{
		Mint:      pos.Mint,
		Pool:      pos.Pool,
		TickLower: uint32(pos.TickLower),
		TickUpper: uint32(pos.TickUpper),
		Liquidity: pos.Liquidity,
	}
}

func (s *storedPosition) toPosition() *staker.Position {
	return &staker.Position{
		Mint:      s.Mint,
		Pool:      s.Pool,
		TickLower: int32(s.TickLower),
		TickUpper: int32(s.TickUpper),
		Liquidity: s.Liquidity,
	}
}

type storedSnapshot struct {
	SecondsPerLiquidityInsideX32 uint64
	ObservedAt                   uint64
}

// storedBalance is the custody balance of one (token, owner) pair.
type storedBalance struct {
	Amount *big.Int
}
