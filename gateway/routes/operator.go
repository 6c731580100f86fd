package routes

import (
	"net/http"

	"lmstaker/crypto"
	"lmstaker/native/staker"
)

type positionFeedRequest struct {
	Mint      string `json:"mint"`
	Pool      string `json:"pool"`
	TickLower int32  `json:"tickLower"`
	TickUpper int32  `json:"tickUpper"`
	Liquidity string `json:"liquidity"`
}

type poolFeedRequest struct {
	Pool      string `json:"pool"`
	TickLower int32  `json:"tickLower"`
	TickUpper int32  `json:"tickUpper"`
	// SecondsPerLiquidityInsideX32 is the cumulative value for the range.
	SecondsPerLiquidityInsideX32 string `json:"secondsPerLiquidityInsideX32,omitempty"`
	ObservedAt                   int64  `json:"observedAt,omitempty"`
	// Liquidity, when set, replaces the pool's in-range liquidity.
	Liquidity string `json:"liquidity,omitempty"`
}

type lockerFeedRequest struct {
	Locker            string `json:"locker"`
	LockedSupply      string `json:"lockedSupply"`
	MaxVoteMultiplier string `json:"maxVoteMultiplier"`
}

type powerFeedRequest struct {
	Locker string `json:"locker"`
	Owner  string `json:"owner"`
	Power  string `json:"power"`
}

type mintRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type feedResponse struct {
	Status string `json:"status"`
}

var feedOK = feedResponse{Status: "ok"}

func (sr *stakerRoutes) feedPosition(w http.ResponseWriter, r *http.Request) {
	var req positionFeedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	mint, err := parseAddressField("mint", req.Mint)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pool, err := parseAddressField("pool", req.Pool)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	liquidity, err := parseAmount("liquidity", req.Liquidity)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	pos := &staker.Position{Mint: mint, Pool: pool, TickLower: req.TickLower, TickUpper: req.TickUpper, Liquidity: liquidity}
	if err := sr.feeds.PutPosition(pos); err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedOK)
}

func (sr *stakerRoutes) feedPool(w http.ResponseWriter, r *http.Request) {
	var req poolFeedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	pool, err := parseAddressField("pool", req.Pool)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.SecondsPerLiquidityInsideX32 != "" {
		cumulative, err := parseAmount("secondsPerLiquidityInsideX32", req.SecondsPerLiquidityInsideX32)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		snapshot := staker.RangeSnapshot{SecondsPerLiquidityInsideX32: cumulative, ObservedAt: req.ObservedAt}
		if err := sr.feeds.PutSnapshot(pool, req.TickLower, req.TickUpper, snapshot); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	if req.Liquidity != "" {
		liquidity, err := parseAmount("liquidity", req.Liquidity)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		if err := sr.feeds.PutPoolLiquidity(pool, liquidity); err != nil {
			writeEngineError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, feedOK)
}

func (sr *stakerRoutes) feedLocker(w http.ResponseWriter, r *http.Request) {
	var req lockerFeedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	locker, err := parseAddressField("locker", req.Locker)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	supply, err := parseAmount("lockedSupply", req.LockedSupply)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	multiplier, err := parseAmount("maxVoteMultiplier", req.MaxVoteMultiplier)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	params := staker.LockerParams{LockedSupply: supply, MaxVoteMultiplier: multiplier}
	if err := sr.feeds.PutLockerParams(locker, params); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedOK)
}

func (sr *stakerRoutes) feedPower(w http.ResponseWriter, r *http.Request) {
	var req powerFeedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	locker, err := parseAddressField("locker", req.Locker)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	owner, err := parseAddressField("owner", req.Owner)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	power, err := parseAmount("power", req.Power)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := sr.feeds.PutVotingPower(locker, owner, power); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedOK)
}

func (sr *stakerRoutes) mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	token, err := parseAddressField("token", req.Token)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	to, err := parseAddressField("to", req.To)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := sr.store.Mint(token, to, amount); err != nil {
		writeEngineError(w, err)
		return
	}
	bal, err := sr.store.Balance(token, to)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Token:   crypto.FormatToken(token),
		Owner:   crypto.FormatAccount(to),
		Balance: bal.String(),
	})
}
