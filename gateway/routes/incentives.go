package routes

import (
	"net/http"

	"lmstaker/native/staker"
)

type createIncentiveRequest struct {
	RewardToken string `json:"rewardToken"`
	Pool        string `json:"pool"`
	Refundee    string `json:"refundee"`
	StartTime   int64  `json:"startTime"`
	EndTime     int64  `json:"endTime"`
	BoostLocker string `json:"boostLocker,omitempty"`
}

func (req createIncentiveRequest) key() (staker.IncentiveKey, error) {
	var key staker.IncentiveKey
	var err error
	if key.RewardToken, err = parseAddressField("rewardToken", req.RewardToken); err != nil {
		return key, err
	}
	if key.Pool, err = parseAddressField("pool", req.Pool); err != nil {
		return key, err
	}
	if key.Refundee, err = parseAddressField("refundee", req.Refundee); err != nil {
		return key, err
	}
	key.StartTime = req.StartTime
	key.EndTime = req.EndTime
	return key, nil
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type endIncentiveResponse struct {
	Incentive string `json:"incentive"`
	Refund    string `json:"refund"`
}

func (sr *stakerRoutes) createIncentive(w http.ResponseWriter, r *http.Request) {
	var req createIncentiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	key, err := req.key()
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var inc *staker.Incentive
	if req.BoostLocker != "" {
		locker, perr := parseAddressField("boostLocker", req.BoostLocker)
		if perr != nil {
			writeBadRequest(w, perr)
			return
		}
		inc, err = sr.engine.CreateBoostedIncentive(key, locker)
	} else {
		inc, err = sr.engine.CreateIncentive(key)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newIncentiveView(inc))
}

func (sr *stakerRoutes) listIncentives(w http.ResponseWriter, r *http.Request) {
	list, err := sr.store.Incentives()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]incentiveView, 0, len(list))
	for _, inc := range list {
		out = append(out, newIncentiveView(inc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (sr *stakerRoutes) getIncentive(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	inc, err := sr.engine.Incentive(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIncentiveView(inc))
}

func (sr *stakerRoutes) addReward(w http.ResponseWriter, r *http.Request) {
	payer, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	inc, err := sr.engine.AddReward(payer, id, amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIncentiveView(inc))
}

func (sr *stakerRoutes) endIncentive(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	refund, err := sr.engine.EndIncentive(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, endIncentiveResponse{Incentive: staker.FormatID(id), Refund: formatAmount(refund)})
}
