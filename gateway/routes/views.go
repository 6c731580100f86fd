package routes

import (
	"strconv"

	"lmstaker/crypto"
	"lmstaker/native/staker"
)

type incentiveView struct {
	ID                     string `json:"id"`
	RewardToken            string `json:"rewardToken"`
	Pool                   string `json:"pool"`
	Refundee               string `json:"refundee"`
	StartTime              int64  `json:"startTime"`
	EndTime                int64  `json:"endTime"`
	TotalRewardUnclaimed   string `json:"totalRewardUnclaimed"`
	TotalSecondsClaimedX32 string `json:"totalSecondsClaimedX32"`
	NumberOfStakes         uint32 `json:"numberOfStakes"`
	Program                string `json:"program"`
	BoostLocker            string `json:"boostLocker,omitempty"`
}

func newIncentiveView(inc *staker.Incentive) incentiveView {
	view := incentiveView{
		ID:                     staker.FormatID(inc.ID),
		RewardToken:            crypto.FormatToken(inc.RewardToken),
		Pool:                   crypto.FormatPool(inc.Pool),
		Refundee:               crypto.FormatAccount(inc.Refundee),
		StartTime:              inc.StartTime,
		EndTime:                inc.EndTime,
		TotalRewardUnclaimed:   formatAmount(inc.TotalRewardUnclaimed),
		TotalSecondsClaimedX32: formatAmount(inc.TotalSecondsClaimedX32),
		NumberOfStakes:         inc.NumberOfStakes,
		Program:                inc.Program.Kind.String(),
	}
	if locker, ok := inc.Program.BoostLocker(); ok {
		view.BoostLocker = crypto.FormatPool(locker)
	}
	return view
}

type depositView struct {
	Mint           string      `json:"mint"`
	Owner          string      `json:"owner"`
	NumberOfStakes uint32      `json:"numberOfStakes"`
	TickLower      int32       `json:"tickLower"`
	TickUpper      int32       `json:"tickUpper"`
	Stakes         []stakeView `json:"stakes,omitempty"`
}

func newDepositView(dep *staker.Deposit) depositView {
	return depositView{
		Mint:           crypto.FormatToken(dep.Mint),
		Owner:          crypto.FormatAccount(dep.Owner),
		NumberOfStakes: dep.NumberOfStakes,
		TickLower:      dep.TickLower,
		TickUpper:      dep.TickUpper,
	}
}

type stakeView struct {
	Mint                                string `json:"mint"`
	Incentive                           string `json:"incentive"`
	Liquidity                           string `json:"liquidity"`
	SecondsPerLiquidityInsideInitialX32 string `json:"secondsPerLiquidityInsideInitialX32"`
}

func newStakeView(stake *staker.Stake) stakeView {
	return stakeView{
		Mint:                                crypto.FormatToken(stake.Mint),
		Incentive:                           staker.FormatID(stake.Incentive),
		Liquidity:                           formatAmount(stake.Liquidity),
		SecondsPerLiquidityInsideInitialX32: formatAmount(stake.SecondsPerLiquidityInsideInitialX32),
	}
}

type rewardAccountView struct {
	RewardToken string `json:"rewardToken"`
	Owner       string `json:"owner"`
	RewardsOwed string `json:"rewardsOwed"`
}

func newRewardAccountView(acct *staker.RewardAccount) rewardAccountView {
	return rewardAccountView{
		RewardToken: crypto.FormatToken(acct.RewardToken),
		Owner:       crypto.FormatAccount(acct.Owner),
		RewardsOwed: formatAmount(acct.RewardsOwed),
	}
}

type unstakeView struct {
	Mint             string `json:"mint"`
	Incentive        string `json:"incentive"`
	Owner            string `json:"owner"`
	Reward           string `json:"reward"`
	SecondsInsideX32 string `json:"secondsInsideX32"`
}

func newUnstakeView(res *staker.UnstakeResult) unstakeView {
	return unstakeView{
		Mint:             crypto.FormatToken(res.Mint),
		Incentive:        staker.FormatID(res.Incentive),
		Owner:            crypto.FormatAccount(res.Owner),
		Reward:           formatAmount(res.Reward),
		SecondsInsideX32: formatAmount(res.SecondsInsideX32),
	}
}

type previewView struct {
	Reward             string `json:"reward"`
	SecondsInsideX32   string `json:"secondsInsideX32"`
	Liquidity          string `json:"liquidity"`
	EffectiveLiquidity string `json:"effectiveLiquidity"`
	BoostPercent       string `json:"boostPercent"`
	At                 int64  `json:"at"`
}

func newPreviewView(p *staker.RewardPreview) previewView {
	return previewView{
		Reward:             formatAmount(p.Reward),
		SecondsInsideX32:   formatAmount(p.SecondsInsideX32),
		Liquidity:          formatAmount(p.Liquidity),
		EffectiveLiquidity: formatAmount(p.EffectiveLiquidity),
		BoostPercent:       strconv.FormatInt(p.BoostPercent, 10),
		At:                 p.At,
	}
}
