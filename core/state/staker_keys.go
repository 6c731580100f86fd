package state

import (
	"encoding/binary"
)

var (
	stakerIncentivePrefix = []byte("staker/incentive/")
	stakerDepositPrefix   = []byte("staker/deposit/")
	stakerStakePrefix     = []byte("staker/stake/")
	stakerRewardPrefix    = []byte("staker/reward/")
	bankBalancePrefix     = []byte("bank/balance/")
	feedPositionPrefix    = []byte("feed/position/")
	feedPoolPrefix        = []byte("feed/pool/")
	feedPoolLiqPrefix     = []byte("feed/poolliq/")
	feedLockerPrefix      = []byte("feed/locker/")
	feedPowerPrefix       = []byte("feed/power/")
)

func joinKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

func incentiveKey(id [32]byte) []byte { return joinKey(stakerIncentivePrefix, id[:]) }

func depositKey(mint [20]byte) []byte { return joinKey(stakerDepositPrefix, mint[:]) }

func stakeKey(mint [20]byte, incentive [32]byte) []byte {
	return joinKey(stakerStakePrefix, mint[:], incentive[:])
}

func stakesOfPrefix(mint [20]byte) []byte { return joinKey(stakerStakePrefix, mint[:]) }

func rewardAccountKey(token, owner [20]byte) []byte {
	return joinKey(stakerRewardPrefix, token[:], owner[:])
}

func balanceKey(token, owner [20]byte) []byte {
	return joinKey(bankBalancePrefix, token[:], owner[:])
}

func positionFeedKey(mint [20]byte) []byte { return joinKey(feedPositionPrefix, mint[:]) }

// Ticks are stored with the sign bit flipped so that keys sort numerically.
func rangeFeedKey(pool [20]byte, lower, upper int32) []byte {
	var ticks [8]byte
	binary.BigEndian.PutUint32(ticks[:4], uint32(lower)^0x80000000)
	binary.BigEndian.PutUint32(ticks[4:], uint32(upper)^0x80000000)
	return joinKey(feedPoolPrefix, pool[:], ticks[:])
}

func poolLiquidityFeedKey(pool [20]byte) []byte { return joinKey(feedPoolLiqPrefix, pool[:]) }

func lockerFeedKey(locker [20]byte) []byte { return joinKey(feedLockerPrefix, locker[:]) }

func votingPowerFeedKey(locker, owner [20]byte) []byte {
	return joinKey(feedPowerPrefix, locker[:], owner[:])
}
