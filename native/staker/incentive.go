package staker

// CreateIncentive registers a standard incentive with zero balances.
func (e *Engine) CreateIncentive(key IncentiveKey) (*Incentive, error) {
	return e.createIncentive(key, StandardProgram())
}

// CreateBoostedIncentive registers an incentive whose rewards are dampened by
// the voting power the deposit owner holds in locker.
func (e *Engine) CreateBoostedIncentive(key IncentiveKey, locker [20]byte) (*Incentive, error) {
	return e.createIncentive(key, BoostedProgram(locker))
}

func (e *Engine) createIncentive(key IncentiveKey, program Program) (*Incentive, error) {
	var created *Incentive
	err := e.apply(func(o *op) error {
		if isZeroAddress(key.RewardToken) || isZeroAddress(key.Pool) || isZeroAddress(key.Refundee) {
			return ErrInvalidAddress
		}
		if err := e.validateSchedule(key, o.now); err != nil {
			return err
		}
		if locker, ok := program.BoostLocker(); ok {
			if err := e.requireLocker(locker); err != nil {
				return err
			}
		}
		id := key.ID()
		if _, exists, err := o.tx.Incentive(id); err != nil {
			return err
		} else if exists {
			return ErrIncentiveExists
		}
		inc := &Incentive{
			ID:          id,
			RewardToken: key.RewardToken,
			Pool:        key.Pool,
			Refundee:    key.Refundee,
			StartTime:   key.StartTime,
			EndTime:     key.EndTime,
			Program:     program,
		}
		if err := o.tx.PutIncentive(inc); err != nil {
			return err
		}
		o.emit(IncentiveCreated{
			Incentive:   id,
			RewardToken: key.RewardToken,
			Pool:        key.Pool,
			Refundee:    key.Refundee,
			StartTime:   key.StartTime,
			EndTime:     key.EndTime,
			Program:     program,
		})
		created = inc.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (e *Engine) validateSchedule(key IncentiveKey, now int64) error {
	if key.StartTime <= now {
		return ErrStartTimeNotFuture
	}
	if key.StartTime-now > e.params.MaxIncentiveStartLeadTime {
		return ErrStartTimeTooFar
	}
	if key.EndTime <= key.StartTime {
		return ErrEndBeforeStart
	}
	if key.EndTime-key.StartTime > e.params.MaxIncentiveDuration {
		return ErrIncentiveTooLong
	}
	return nil
}

func (e *Engine) requireLocker(locker [20]byte) error {
	if isZeroAddress(locker) {
		return ErrInvalidAddress
	}
	if e.locker == nil {
		return errNilLocker
	}
	_, ok, err := e.locker.LockerParams(locker)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownLocker
	}
	return nil
}

// AddReward moves amount of the reward token from payer into custody and
// credits the incentive's unclaimed pool.
func (e *Engine) AddReward(payer [20]byte, id [32]byte, amount uint64) (*Incentive, error) {
	var updated *Incentive
	err := e.apply(func(o *op) error {
		if amount == 0 {
			return ErrInvalidAmount
		}
		if err := e.requireVault(); err != nil {
			return err
		}
		if payer == e.vault {
			return ErrVaultAsPayer
		}
		inc, err := loadIncentive(o.tx, id)
		if err != nil {
			return err
		}
		total, err := add64(inc.TotalRewardUnclaimed, amount)
		if err != nil {
			return err
		}
		if err := o.tx.Transfer(inc.RewardToken, payer, e.vault, amount); err != nil {
			return err
		}
		inc.TotalRewardUnclaimed = total
		if err := o.tx.PutIncentive(inc); err != nil {
			return err
		}
		o.emit(RewardAdded{Incentive: id, Payer: payer, Reward: amount})
		updated = inc.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// EndIncentive refunds the unclaimed pool to the refundee once the program is
// over and every stake has been closed. Anyone may trigger it. The record is
// retained with a zero pool; total seconds claimed is left unchanged.
func (e *Engine) EndIncentive(id [32]byte) (uint64, error) {
	var refund uint64
	err := e.apply(func(o *op) error {
		if err := e.requireVault(); err != nil {
			return err
		}
		inc, err := loadIncentive(o.tx, id)
		if err != nil {
			return err
		}
		if o.now <= inc.EndTime {
			return ErrIncentiveNotEnded
		}
		if inc.NumberOfStakes > 0 {
			return ErrIncentiveHasStakes
		}
		if inc.TotalRewardUnclaimed == 0 {
			return ErrNoRewards
		}
		refund = inc.TotalRewardUnclaimed
		if err := o.tx.Transfer(inc.RewardToken, e.vault, inc.Refundee, refund); err != nil {
			return err
		}
		inc.TotalRewardUnclaimed = 0
		if err := o.tx.PutIncentive(inc); err != nil {
			return err
		}
		o.emit(IncentiveEnded{Incentive: id, Refundee: inc.Refundee, Refund: refund})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return refund, nil
}
