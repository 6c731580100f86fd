package staker

// CreateRewardAccount initialises the (token, owner) reward account. Calling it
// for an existing account is a no-op.
func (e *Engine) CreateRewardAccount(token, owner [20]byte) (*RewardAccount, error) {
	var out *RewardAccount
	err := e.apply(func(o *op) error {
		if isZeroAddress(token) || isZeroAddress(owner) {
			return ErrInvalidAddress
		}
		acct, ok, err := o.tx.RewardAccount(token, owner)
		if err != nil {
			return err
		}
		if ok && acct != nil {
			out = acct.Clone()
			return nil
		}
		acct = &RewardAccount{RewardToken: token, Owner: owner}
		if err := o.tx.PutRewardAccount(acct); err != nil {
			return err
		}
		out = acct.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimReward pays out of caller's reward account to `to`. A zero
// amountRequested claims the whole balance; otherwise the payout is capped at
// the balance. It returns the amount paid.
func (e *Engine) ClaimReward(caller, token [20]byte, amountRequested uint64, to [20]byte) (uint64, error) {
	var payout uint64
	err := e.apply(func(o *op) error {
		if isZeroAddress(to) {
			return ErrInvalidAddress
		}
		if err := e.requireVault(); err != nil {
			return err
		}
		if to == e.vault {
			return ErrClaimToVault
		}
		acct, ok, err := o.tx.RewardAccount(token, caller)
		if err != nil {
			return err
		}
		if !ok || acct == nil {
			return ErrRewardAccountAbsent
		}
		payout = acct.RewardsOwed
		if amountRequested > 0 && amountRequested < payout {
			payout = amountRequested
		}
		if payout > 0 {
			if err := o.tx.Transfer(token, e.vault, to, payout); err != nil {
				return err
			}
			acct.RewardsOwed -= payout
			if err := o.tx.PutRewardAccount(acct); err != nil {
				return err
			}
		}
		o.emit(RewardClaimed{RewardToken: token, Owner: caller, To: to, Reward: payout})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return payout, nil
}
