package staker

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by an engine operation matches exactly one
// of these through errors.Is.
var (
	ErrSchedule     = errors.New("staker: schedule error")
	ErrState        = errors.New("staker: state error")
	ErrUnauthorized = errors.New("staker: unauthorized")
	ErrPrecondition = errors.New("staker: precondition failed")
	ErrArithmetic   = errors.New("staker: arithmetic error")
)

func kindError(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

var (
	ErrStartTimeNotFuture  = kindError(ErrSchedule, "start time must be in the future")
	ErrStartTimeTooFar     = kindError(ErrSchedule, "start time too far into the future")
	ErrEndBeforeStart      = kindError(ErrSchedule, "end time must be after start time")
	ErrIncentiveTooLong    = kindError(ErrSchedule, "incentive duration too long")
	ErrIncentiveExists     = kindError(ErrState, "incentive already exists")
	ErrIncentiveNotFound   = kindError(ErrState, "incentive not found")
	ErrIncentiveNotStarted = kindError(ErrState, "incentive not started")
	ErrIncentiveEnded      = kindError(ErrState, "incentive ended")
	ErrIncentiveNotEnded   = kindError(ErrState, "incentive has not ended")
	ErrNoRewards           = kindError(ErrState, "incentive has no unclaimed rewards")
	ErrDepositExists       = kindError(ErrState, "deposit already exists")
	ErrDepositNotFound     = kindError(ErrState, "deposit not found")
	ErrStakeExists         = kindError(ErrState, "stake already exists")
	ErrStakeNotFound       = kindError(ErrState, "stake not found")
	ErrRewardAccountAbsent = kindError(ErrState, "reward account not found")
	ErrNotDepositOwner     = kindError(ErrUnauthorized, "caller is not the deposit owner")
	ErrBoostedOwnerOnly    = kindError(ErrUnauthorized, "only the owner can unstake from a boosted incentive")
	ErrIncentiveHasStakes  = kindError(ErrPrecondition, "incentive still has active stakes")
	ErrDepositStaked       = kindError(ErrPrecondition, "deposit is still staked")
	ErrZeroLiquidity       = kindError(ErrPrecondition, "position has zero liquidity")
	ErrPoolMismatch        = kindError(ErrPrecondition, "position pool is not the incentive pool")
	ErrStaleObservation    = kindError(ErrPrecondition, "pool observation is stale")
	ErrUnknownPosition     = kindError(ErrPrecondition, "mint is not a known liquidity position")
	ErrUnknownLocker       = kindError(ErrPrecondition, "governance locker not found")
	ErrInvalidAmount       = kindError(ErrPrecondition, "amount must be positive")
	ErrInvalidAddress      = kindError(ErrPrecondition, "address must not be zero")
	ErrWithdrawToVault     = kindError(ErrPrecondition, "cannot withdraw to the staker vault")
	ErrClaimToVault        = kindError(ErrPrecondition, "cannot claim rewards to the staker vault")
	ErrVaultAsPayer        = kindError(ErrPrecondition, "the staker vault cannot fund incentives or deposit positions")
	ErrOverflow            = kindError(ErrArithmetic, "overflow")
	ErrUnderflow           = kindError(ErrArithmetic, "underflow")
	ErrDivisionByZero      = kindError(ErrArithmetic, "division by zero")
	ErrRewardExceedsPool   = kindError(ErrArithmetic, "reward exceeds unclaimed pool")
)

// Configuration errors are programming errors of the host, not user failures.
var (
	errNilBackend = errors.New("staker engine: backend not configured")
	errNilOracle  = errors.New("staker engine: pool oracle not configured")
	errNilLocker  = errors.New("staker engine: governance locker not configured")
	errNilVault   = errors.New("staker engine: vault not configured")
)

// Kind returns the name of the error kind carried by err, or "internal" when
// err does not belong to the taxonomy.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSchedule):
		return "schedule"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrArithmetic):
		return "arithmetic"
	default:
		return "internal"
	}
}
