package staker

import (
	"encoding/hex"
	"strconv"

	"lmstaker/core/types"
	"lmstaker/crypto"
)

const (
	EventTypeIncentiveCreated   = "staker.incentive.created"
	EventTypeRewardAdded        = "staker.reward.added"
	EventTypeStakeOpened        = "staker.stake.opened"
	EventTypeStakeClosed        = "staker.stake.closed"
	EventTypeDepositTransferred = "staker.deposit.transferred"
	EventTypeRewardClaimed      = "staker.reward.claimed"
	EventTypeIncentiveEnded     = "staker.incentive.ended"
)

// IncentiveCreated is emitted when a new incentive is registered.
type IncentiveCreated struct {
	Incentive   [32]byte
	RewardToken [20]byte
	Pool        [20]byte
	Refundee    [20]byte
	StartTime   int64
	EndTime     int64
	Program     Program
}

// EventType satisfies the Event interface.
func (IncentiveCreated) EventType() string { return EventTypeIncentiveCreated }

// Event converts the payload into a flat record.
func (e IncentiveCreated) Event() *types.Event {
	attrs := map[string]string{
		"incentive":   FormatID(e.Incentive),
		"rewardToken": crypto.FormatToken(e.RewardToken),
		"pool":        crypto.FormatPool(e.Pool),
		"refundee":    crypto.FormatAccount(e.Refundee),
		"startTime":   strconv.FormatInt(e.StartTime, 10),
		"endTime":     strconv.FormatInt(e.EndTime, 10),
		"program":     e.Program.Kind.String(),
	}
	if locker, ok := e.Program.BoostLocker(); ok {
		attrs["boostLocker"] = crypto.FormatPool(locker)
	}
	return &types.Event{Type: EventTypeIncentiveCreated, Attributes: attrs}
}

// RewardAdded is emitted when an incentive is funded.
type RewardAdded struct {
	Incentive [32]byte
	Payer     [20]byte
	Reward    uint64
}

func (RewardAdded) EventType() string { return EventTypeRewardAdded }

func (e RewardAdded) Event() *types.Event {
	return &types.Event{Type: EventTypeRewardAdded, Attributes: map[string]string{
		"incentive": FormatID(e.Incentive),
		"payer":     crypto.FormatAccount(e.Payer),
		"reward":    strconv.FormatUint(e.Reward, 10),
	}}
}

// StakeOpened is emitted when a deposit enrolls in an incentive.
type StakeOpened struct {
	Mint      [20]byte
	Incentive [32]byte
	Liquidity uint64
}

func (StakeOpened) EventType() string { return EventTypeStakeOpened }

func (e StakeOpened) Event() *types.Event {
	return &types.Event{Type: EventTypeStakeOpened, Attributes: map[string]string{
		"mint":      crypto.FormatToken(e.Mint),
		"incentive": FormatID(e.Incentive),
		"liquidity": strconv.FormatUint(e.Liquidity, 10),
	}}
}

// StakeClosed is emitted when a stake is unwound and its reward credited.
type StakeClosed struct {
	Mint      [20]byte
	Incentive [32]byte
	Owner     [20]byte
	Reward    uint64
}

func (StakeClosed) EventType() string { return EventTypeStakeClosed }

func (e StakeClosed) Event() *types.Event {
	return &types.Event{Type: EventTypeStakeClosed, Attributes: map[string]string{
		"mint":      crypto.FormatToken(e.Mint),
		"incentive": FormatID(e.Incentive),
		"owner":     crypto.FormatAccount(e.Owner),
		"reward":    strconv.FormatUint(e.Reward, 10),
	}}
}

// DepositTransferred records every ownership change of a deposit. Creation has
// a zero OldOwner and withdrawal a zero NewOwner.
type DepositTransferred struct {
	Mint     [20]byte
	OldOwner [20]byte
	NewOwner [20]byte
}

func (DepositTransferred) EventType() string { return EventTypeDepositTransferred }

func (e DepositTransferred) Event() *types.Event {
	mint := crypto.FormatToken(e.Mint)
	return &types.Event{Type: EventTypeDepositTransferred, Attributes: map[string]string{
		"deposit":  mint,
		"mint":     mint,
		"oldOwner": formatOptionalAccount(e.OldOwner),
		"newOwner": formatOptionalAccount(e.NewOwner),
	}}
}

// RewardClaimed is emitted on every claim, including zero payouts.
type RewardClaimed struct {
	RewardToken [20]byte
	Owner       [20]byte
	To          [20]byte
	Reward      uint64
}

func (RewardClaimed) EventType() string { return EventTypeRewardClaimed }

func (e RewardClaimed) Event() *types.Event {
	return &types.Event{Type: EventTypeRewardClaimed, Attributes: map[string]string{
		"rewardToken": crypto.FormatToken(e.RewardToken),
		"owner":       crypto.FormatAccount(e.Owner),
		"to":          crypto.FormatAccount(e.To),
		"reward":      strconv.FormatUint(e.Reward, 10),
	}}
}

// IncentiveEnded is emitted when leftover rewards are refunded.
type IncentiveEnded struct {
	Incentive [32]byte
	Refundee  [20]byte
	Refund    uint64
}

func (IncentiveEnded) EventType() string { return EventTypeIncentiveEnded }

func (e IncentiveEnded) Event() *types.Event {
	return &types.Event{Type: EventTypeIncentiveEnded, Attributes: map[string]string{
		"incentive": FormatID(e.Incentive),
		"refundee":  crypto.FormatAccount(e.Refundee),
		"refund":    strconv.FormatUint(e.Refund, 10),
	}}
}

// FormatID renders an incentive id as 0x-prefixed hex.
func FormatID(id [32]byte) string {
	return "0x" + hex.EncodeToString(id[:])
}

// ParseID parses a 0x-prefixed or bare hex incentive id.
func ParseID(value string) ([32]byte, error) {
	var id [32]byte
	trimmed := value
	if len(trimmed) >= 2 && (trimmed[:2] == "0x" || trimmed[:2] == "0X") {
		trimmed = trimmed[2:]
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, kindError(ErrPrecondition, "invalid incentive id")
	}
	if len(raw) != len(id) {
		return id, kindError(ErrPrecondition, "incentive id must be 32 bytes")
	}
	copy(id[:], raw)
	return id, nil
}

func formatOptionalAccount(addr [20]byte) string {
	if isZeroAddress(addr) {
		return ""
	}
	return crypto.FormatAccount(addr)
}
