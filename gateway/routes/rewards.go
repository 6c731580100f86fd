package routes

import (
	"net/http"
	"strconv"

	"lmstaker/crypto"
)

type createRewardAccountRequest struct {
	RewardToken string `json:"rewardToken"`
	Owner       string `json:"owner,omitempty"`
}

type claimRequest struct {
	Amount string `json:"amount,omitempty"`
	To     string `json:"to"`
}

type claimResponse struct {
	RewardToken string `json:"rewardToken"`
	To          string `json:"to"`
	Reward      string `json:"reward"`
}

type balanceResponse struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Balance string `json:"balance"`
}

type eventView struct {
	ID         int64             `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt int64             `json:"recordedAt"`
}

// createRewardAccount initialises an account for the given owner, or for the
// caller when owner is omitted.
func (sr *stakerRoutes) createRewardAccount(w http.ResponseWriter, r *http.Request) {
	var req createRewardAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	token, err := parseAddressField("rewardToken", req.RewardToken)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var owner [20]byte
	if req.Owner != "" {
		if owner, err = parseAddressField("owner", req.Owner); err != nil {
			writeBadRequest(w, err)
			return
		}
	} else {
		caller, ok := requireCaller(w, r)
		if !ok {
			return
		}
		owner = caller
	}
	acct, err := sr.engine.CreateRewardAccount(token, owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRewardAccountView(acct))
}

func (sr *stakerRoutes) listRewardAccounts(w http.ResponseWriter, r *http.Request) {
	owner, err := addressParam(r, "owner")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	accounts, err := sr.store.RewardAccountsOf(owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]rewardAccountView, 0, len(accounts))
	for _, acct := range accounts {
		out = append(out, newRewardAccountView(acct))
	}
	writeJSON(w, http.StatusOK, out)
}

func (sr *stakerRoutes) claimReward(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	token, err := addressParam(r, "token")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req claimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	to, err := parseAddressField("to", req.To)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	paid, err := sr.engine.ClaimReward(caller, token, amount, to)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{
		RewardToken: crypto.FormatToken(token),
		To:          crypto.FormatAccount(to),
		Reward:      formatAmount(paid),
	})
}

func (sr *stakerRoutes) balance(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "token")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	owner, err := addressParam(r, "owner")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	bal, err := sr.store.Balance(token, owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Token:   crypto.FormatToken(token),
		Owner:   crypto.FormatAccount(owner),
		Balance: bal.String(),
	})
}

func (sr *stakerRoutes) recentEvents(w http.ResponseWriter, r *http.Request) {
	if sr.events == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "event index disabled"})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, errInvalidLimit)
			return
		}
		limit = parsed
	}
	records, err := sr.events.Recent(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]eventView, 0, len(records))
	for _, rec := range records {
		out = append(out, eventView{
			ID:         rec.ID,
			Type:       rec.Type,
			Attributes: rec.Attributes,
			RecordedAt: rec.RecordedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
