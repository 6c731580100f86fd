package staker

import (
	"math"

	"github.com/holiman/uint256"
)

// Resolution is the number of fractional bits of the UQ32.32 time format.
const Resolution = 32

// RewardOwed is the result of a reward computation.
type RewardOwed struct {
	// Reward is the amount of reward token owed to the stake.
	Reward uint64 `json:"reward"`
	// SecondsInsideX32 is the stake's liquidity-seconds in UQ32.32.
	SecondsInsideX32 uint64 `json:"secondsInsideX32"`
}

// RewardInput carries the incentive and stake snapshot for a reward
// computation. CurrentTime must not precede StartTime.
type RewardInput struct {
	TotalRewardUnclaimed                uint64
	TotalSecondsClaimedX32              uint64
	StartTime                           int64
	EndTime                             int64
	Liquidity                           uint64
	SecondsPerLiquidityInsideInitialX32 uint64
	SecondsPerLiquidityInsideX32        uint64
	CurrentTime                         int64
}

// BoostInput carries the governance values of a boosted computation.
type BoostInput struct {
	VotingPower      uint64
	TotalVotingPower uint64
	PoolLiquidity    uint64
}

// ComputeReward returns the reward owed to a stake:
//
//	reward = floor(total_reward_unclaimed * seconds_inside / total_seconds_unclaimed)
//
// All intermediates are 256 bits wide and every division floors, so the result
// never exceeds TotalRewardUnclaimed.
func ComputeReward(in RewardInput) (RewardOwed, error) {
	return computeReward(in, in.Liquidity)
}

// ComputeRewardBoosted applies the voting-power dampening of EffectiveLiquidity
// and then behaves exactly like ComputeReward.
func ComputeRewardBoosted(in RewardInput, boost BoostInput) (RewardOwed, error) {
	return computeReward(in, EffectiveLiquidity(in.Liquidity, boost))
}

func computeReward(in RewardInput, liquidity uint64) (RewardOwed, error) {
	if in.CurrentTime < in.StartTime {
		// callers must not compute rewards before the program starts
		panic("staker: reward computed before incentive start")
	}
	if in.SecondsPerLiquidityInsideX32 < in.SecondsPerLiquidityInsideInitialX32 {
		return RewardOwed{}, ErrUnderflow
	}
	secondsInside, err := mul64(in.SecondsPerLiquidityInsideX32-in.SecondsPerLiquidityInsideInitialX32, liquidity)
	if err != nil {
		return RewardOwed{}, err
	}
	unclaimed, err := totalSecondsUnclaimedX32(in)
	if err != nil {
		return RewardOwed{}, err
	}
	if secondsInside == 0 {
		return RewardOwed{Reward: 0, SecondsInsideX32: 0}, nil
	}
	reward, err := mulDivFloor(in.TotalRewardUnclaimed, secondsInside, unclaimed)
	if err != nil {
		return RewardOwed{}, err
	}
	if reward > in.TotalRewardUnclaimed {
		return RewardOwed{}, ErrRewardExceedsPool
	}
	return RewardOwed{Reward: reward, SecondsInsideX32: secondsInside}, nil
}

// totalSecondsUnclaimedX32 is the remaining liquidity-second capacity:
// ((max(end, now) - start) << 32) - claimed.
func totalSecondsUnclaimedX32(in RewardInput) (uint64, error) {
	horizon := in.EndTime
	if in.CurrentTime > horizon {
		horizon = in.CurrentTime
	}
	if horizon < in.StartTime {
		return 0, ErrUnderflow
	}
	span := uint64(horizon - in.StartTime)
	if span > math.MaxUint64>>Resolution {
		return 0, ErrOverflow
	}
	capacity := span << Resolution
	if in.TotalSecondsClaimedX32 > capacity {
		return 0, ErrUnderflow
	}
	return capacity - in.TotalSecondsClaimedX32, nil
}

// EffectiveLiquidity dampens liquidity by governance voting power:
//
//	min(0.4*liquidity + 0.6*pool_liquidity*voting_power/total_voting_power, liquidity)
//
// Each factor floors. A zero TotalVotingPower contributes no boost.
func EffectiveLiquidity(liquidity uint64, boost BoostInput) uint64 {
	raw := uint256.NewInt(liquidity)
	base := new(uint256.Int).Mul(raw, uint256.NewInt(4))
	base.Div(base, uint256.NewInt(10))

	share := new(uint256.Int)
	if boost.TotalVotingPower > 0 {
		share.Mul(uint256.NewInt(boost.PoolLiquidity), uint256.NewInt(boost.VotingPower))
		share.Div(share, uint256.NewInt(boost.TotalVotingPower))
		share.Mul(share, uint256.NewInt(6))
		share.Div(share, uint256.NewInt(10))
	}
	effective := base.Add(base, share)
	if effective.Gt(raw) {
		return liquidity
	}
	return effective.Uint64()
}

// BoostPercent reports how far the effective liquidity sits from the raw
// liquidity, as a whole percentage in [-100, 0]. Zero means full boost.
func BoostPercent(liquidity uint64, boost BoostInput) int64 {
	if liquidity == 0 {
		return 0
	}
	effective := EffectiveLiquidity(liquidity, boost)
	deficit := uint256.NewInt(liquidity - effective)
	deficit.Mul(deficit, uint256.NewInt(100))
	deficit.Div(deficit, uint256.NewInt(liquidity))
	return -int64(deficit.Uint64())
}

// TotalVotingPower is the hypothetical ceiling of a locker: the whole locked
// supply held for the maximum period.
func TotalVotingPower(params LockerParams) (uint64, error) {
	return mul64(params.LockedSupply, params.MaxVoteMultiplier)
}

func mul64(a, b uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !product.IsUint64() {
		return 0, ErrOverflow
	}
	return product.Uint64(), nil
}

func add64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

func sub64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// mulDivFloor computes floor(a*b/denominator) with a 256-bit intermediate.
func mulDivFloor(a, b, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, ErrDivisionByZero
	}
	quotient, overflow := new(uint256.Int).MulDivOverflow(
		uint256.NewInt(a),
		uint256.NewInt(b),
		uint256.NewInt(denominator),
	)
	if overflow || !quotient.IsUint64() {
		return 0, ErrOverflow
	}
	return quotient.Uint64(), nil
}
