package routes

import (
	"net/http"

	"lmstaker/crypto"
)

type createDepositRequest struct {
	Mint string `json:"mint"`
}

type transferDepositRequest struct {
	To string `json:"to"`
}

type withdrawResponse struct {
	Mint string `json:"mint"`
	To   string `json:"to"`
}

func (sr *stakerRoutes) createDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req createDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	mint, err := parseAddressField("mint", req.Mint)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	dep, err := sr.engine.CreateDeposit(caller, mint)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDepositView(dep))
}

func (sr *stakerRoutes) getDeposit(w http.ResponseWriter, r *http.Request) {
	mint, err := addressParam(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	dep, err := sr.engine.Deposit(mint)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	stakes, err := sr.store.StakesOf(mint)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	view := newDepositView(dep)
	for _, stake := range stakes {
		view.Stakes = append(view.Stakes, newStakeView(stake))
	}
	writeJSON(w, http.StatusOK, view)
}

func (sr *stakerRoutes) transferDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	mint, err := addressParam(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req transferDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	to, err := parseAddressField("to", req.To)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	dep, err := sr.engine.TransferDeposit(caller, mint, to)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDepositView(dep))
}

func (sr *stakerRoutes) withdrawDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	mint, err := addressParam(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req transferDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	to, err := parseAddressField("to", req.To)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := sr.engine.WithdrawDeposit(caller, mint, to); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawResponse{Mint: crypto.FormatToken(mint), To: crypto.FormatAccount(to)})
}

func (sr *stakerRoutes) stake(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	mint, err := addressParam(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	stake, err := sr.engine.Stake(caller, mint, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newStakeView(stake))
}

func (sr *stakerRoutes) unstake(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	mint, err := addressParam(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	res, err := sr.engine.Unstake(caller, mint, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUnstakeView(res))
}

func (sr *stakerRoutes) previewReward(w http.ResponseWriter, r *http.Request) {
	mint, err := addressParam(r, "mint")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	id, err := idParam(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	preview, err := sr.engine.PreviewReward(mint, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPreviewView(preview))
}
