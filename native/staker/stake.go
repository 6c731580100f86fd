package staker

// Stake enrolls a deposit in an incentive, snapshotting the position liquidity
// and the cumulative seconds-per-liquidity inside its range.
func (e *Engine) Stake(caller, mint [20]byte, id [32]byte) (*Stake, error) {
	var created *Stake
	err := e.apply(func(o *op) error {
		if e.oracle == nil {
			return errNilOracle
		}
		inc, err := loadIncentive(o.tx, id)
		if err != nil {
			return err
		}
		if o.now < inc.StartTime {
			return ErrIncentiveNotStarted
		}
		if o.now >= inc.EndTime {
			return ErrIncentiveEnded
		}
		if inc.TotalRewardUnclaimed == 0 {
			return ErrNoRewards
		}
		dep, err := loadDeposit(o.tx, mint)
		if err != nil {
			return err
		}
		if dep.Owner != caller {
			return ErrNotDepositOwner
		}
		position, ok, err := e.oracle.Position(mint)
		if err != nil {
			return err
		}
		if !ok || position == nil {
			return ErrUnknownPosition
		}
		if position.Pool != inc.Pool {
			return ErrPoolMismatch
		}
		if position.Liquidity == 0 {
			return ErrZeroLiquidity
		}
		if _, exists, err := o.tx.Stake(mint, id); err != nil {
			return err
		} else if exists {
			return ErrStakeExists
		}
		snapshot, err := e.snapshot(inc.Pool, dep, o.now)
		if err != nil {
			return err
		}
		if dep.NumberOfStakes == ^uint32(0) || inc.NumberOfStakes == ^uint32(0) {
			return ErrOverflow
		}
		dep.NumberOfStakes++
		inc.NumberOfStakes++
		stake := &Stake{
			Mint:                                mint,
			Incentive:                           id,
			Liquidity:                           position.Liquidity,
			SecondsPerLiquidityInsideInitialX32: snapshot.SecondsPerLiquidityInsideX32,
		}
		if err := o.tx.PutDeposit(dep); err != nil {
			return err
		}
		if err := o.tx.PutIncentive(inc); err != nil {
			return err
		}
		if err := o.tx.PutStake(stake); err != nil {
			return err
		}
		o.emit(StakeOpened{Mint: mint, Incentive: id, Liquidity: stake.Liquidity})
		created = stake.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Unstake closes a stake, credits its reward to the deposit owner's reward
// account and updates the incentive's pool. Before the end time only the
// deposit owner may unstake; afterwards anyone may, except for boosted
// incentives which stay owner-only.
func (e *Engine) Unstake(caller, mint [20]byte, id [32]byte) (*UnstakeResult, error) {
	var result *UnstakeResult
	err := e.apply(func(o *op) error {
		if e.oracle == nil {
			return errNilOracle
		}
		inc, err := loadIncentive(o.tx, id)
		if err != nil {
			return err
		}
		dep, err := loadDeposit(o.tx, mint)
		if err != nil {
			return err
		}
		stake, ok, err := o.tx.Stake(mint, id)
		if err != nil {
			return err
		}
		if !ok || stake == nil {
			return ErrStakeNotFound
		}
		if _, boosted := inc.Program.BoostLocker(); boosted {
			if caller != dep.Owner {
				return ErrBoostedOwnerOnly
			}
		} else if o.now < inc.EndTime && caller != dep.Owner {
			return ErrNotDepositOwner
		}
		owed, err := e.owed(inc, dep, stake, o.now)
		if err != nil {
			return err
		}
		if dep.NumberOfStakes == 0 || inc.NumberOfStakes == 0 {
			return ErrUnderflow
		}
		dep.NumberOfStakes--
		inc.NumberOfStakes--
		claimed, err := add64(inc.TotalSecondsClaimedX32, owed.SecondsInsideX32)
		if err != nil {
			return err
		}
		remaining, err := sub64(inc.TotalRewardUnclaimed, owed.Reward)
		if err != nil {
			return err
		}
		inc.TotalSecondsClaimedX32 = claimed
		inc.TotalRewardUnclaimed = remaining

		acct, ok, err := o.tx.RewardAccount(inc.RewardToken, dep.Owner)
		if err != nil {
			return err
		}
		if !ok || acct == nil {
			acct = &RewardAccount{RewardToken: inc.RewardToken, Owner: dep.Owner}
		}
		credited, err := add64(acct.RewardsOwed, owed.Reward)
		if err != nil {
			return err
		}
		acct.RewardsOwed = credited

		if err := o.tx.PutDeposit(dep); err != nil {
			return err
		}
		if err := o.tx.PutIncentive(inc); err != nil {
			return err
		}
		if err := o.tx.PutRewardAccount(acct); err != nil {
			return err
		}
		if err := o.tx.DeleteStake(mint, id); err != nil {
			return err
		}
		o.emit(StakeClosed{Mint: mint, Incentive: id, Owner: dep.Owner, Reward: owed.Reward})
		result = &UnstakeResult{
			Mint:             mint,
			Incentive:        id,
			Owner:            dep.Owner,
			Reward:           owed.Reward,
			SecondsInsideX32: owed.SecondsInsideX32,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PreviewReward computes what Unstake would credit right now without
// mutating state.
func (e *Engine) PreviewReward(mint [20]byte, id [32]byte) (*RewardPreview, error) {
	var preview *RewardPreview
	err := e.view(func(o *op) error {
		if e.oracle == nil {
			return errNilOracle
		}
		inc, err := loadIncentive(o.tx, id)
		if err != nil {
			return err
		}
		dep, err := loadDeposit(o.tx, mint)
		if err != nil {
			return err
		}
		stake, ok, err := o.tx.Stake(mint, id)
		if err != nil {
			return err
		}
		if !ok || stake == nil {
			return ErrStakeNotFound
		}
		owed, err := e.owed(inc, dep, stake, o.now)
		if err != nil {
			return err
		}
		preview = &RewardPreview{
			RewardOwed:         owed,
			Liquidity:          stake.Liquidity,
			EffectiveLiquidity: stake.Liquidity,
			At:                 o.now,
		}
		if locker, boosted := inc.Program.BoostLocker(); boosted {
			boost, err := e.boostInput(locker, inc.Pool, dep.Owner, o.now)
			if err != nil {
				return err
			}
			preview.EffectiveLiquidity = EffectiveLiquidity(stake.Liquidity, boost)
			preview.BoostPercent = BoostPercent(stake.Liquidity, boost)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return preview, nil
}

// owed dispatches on the incentive's program and returns the reward the stake
// has accrued at now.
func (e *Engine) owed(inc *Incentive, dep *Deposit, stake *Stake, now int64) (RewardOwed, error) {
	if now < inc.StartTime {
		return RewardOwed{}, ErrIncentiveNotStarted
	}
	snapshot, err := e.snapshot(inc.Pool, dep, now)
	if err != nil {
		return RewardOwed{}, err
	}
	in := RewardInput{
		TotalRewardUnclaimed:                inc.TotalRewardUnclaimed,
		TotalSecondsClaimedX32:              inc.TotalSecondsClaimedX32,
		StartTime:                           inc.StartTime,
		EndTime:                             inc.EndTime,
		Liquidity:                           stake.Liquidity,
		SecondsPerLiquidityInsideInitialX32: stake.SecondsPerLiquidityInsideInitialX32,
		SecondsPerLiquidityInsideX32:        snapshot.SecondsPerLiquidityInsideX32,
		CurrentTime:                         now,
	}
	switch inc.Program.Kind {
	case ProgramBoosted:
		boost, err := e.boostInput(inc.Program.Locker, inc.Pool, dep.Owner, now)
		if err != nil {
			return RewardOwed{}, err
		}
		return ComputeRewardBoosted(in, boost)
	default:
		return ComputeReward(in)
	}
}

func (e *Engine) boostInput(locker, pool, owner [20]byte, now int64) (BoostInput, error) {
	if e.locker == nil {
		return BoostInput{}, errNilLocker
	}
	params, ok, err := e.locker.LockerParams(locker)
	if err != nil {
		return BoostInput{}, err
	}
	if !ok {
		return BoostInput{}, ErrUnknownLocker
	}
	total, err := TotalVotingPower(params)
	if err != nil {
		return BoostInput{}, err
	}
	power, err := e.locker.VotingPower(locker, owner, now)
	if err != nil {
		return BoostInput{}, err
	}
	poolLiquidity, err := e.oracle.PoolLiquidity(pool)
	if err != nil {
		return BoostInput{}, err
	}
	return BoostInput{VotingPower: power, TotalVotingPower: total, PoolLiquidity: poolLiquidity}, nil
}

func (e *Engine) snapshot(pool [20]byte, dep *Deposit, now int64) (RangeSnapshot, error) {
	snapshot, err := e.oracle.SnapshotInside(pool, dep.TickLower, dep.TickUpper)
	if err != nil {
		return RangeSnapshot{}, err
	}
	if age := e.params.MaxObservationAge; age > 0 && (snapshot.ObservedAt > now || now-snapshot.ObservedAt > age) {
		return RangeSnapshot{}, ErrStaleObservation
	}
	return snapshot, nil
}
