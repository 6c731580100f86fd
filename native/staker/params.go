package staker

import "fmt"

const (
	// DefaultMaxIncentiveStartLeadTime is 30 days.
	DefaultMaxIncentiveStartLeadTime int64 = 2_592_000
	// DefaultMaxIncentiveDuration is two years.
	DefaultMaxIncentiveDuration int64 = 63_072_000
)

// Params bounds incentive schedules and oracle freshness.
type Params struct {
	// MaxIncentiveStartLeadTime is how far into the future start_time may be.
	MaxIncentiveStartLeadTime int64
	// MaxIncentiveDuration caps end_time - start_time.
	MaxIncentiveDuration int64
	// MaxObservationAge rejects AMM snapshots older than this many seconds.
	// Zero disables the check.
	MaxObservationAge int64
}

// DefaultParams returns the production schedule limits.
func DefaultParams() Params {
	return Params{
		MaxIncentiveStartLeadTime: DefaultMaxIncentiveStartLeadTime,
		MaxIncentiveDuration:      DefaultMaxIncentiveDuration,
	}
}

// Validate checks the parameters for internal consistency.
func (p Params) Validate() error {
	if p.MaxIncentiveStartLeadTime <= 0 {
		return fmt.Errorf("staker params: max start lead time must be positive")
	}
	if p.MaxIncentiveDuration <= 0 {
		return fmt.Errorf("staker params: max duration must be positive")
	}
	// the UQ32.32 capacity of an incentive must fit in 64 bits
	if p.MaxIncentiveDuration >= 1<<32 {
		return fmt.Errorf("staker params: max duration must be below 2^32 seconds")
	}
	if p.MaxObservationAge < 0 {
		return fmt.Errorf("staker params: max observation age must not be negative")
	}
	return nil
}
