package staker

// CreateDeposit takes custody of a position owned by caller and registers a
// deposit snapshotting the position's tick range.
func (e *Engine) CreateDeposit(caller, mint [20]byte) (*Deposit, error) {
	var created *Deposit
	err := e.apply(func(o *op) error {
		if isZeroAddress(caller) || isZeroAddress(mint) {
			return ErrInvalidAddress
		}
		if err := e.requireVault(); err != nil {
			return err
		}
		if caller == e.vault {
			return ErrVaultAsPayer
		}
		if e.oracle == nil {
			return errNilOracle
		}
		position, ok, err := e.oracle.Position(mint)
		if err != nil {
			return err
		}
		if !ok || position == nil {
			return ErrUnknownPosition
		}
		if _, exists, err := o.tx.Deposit(mint); err != nil {
			return err
		} else if exists {
			return ErrDepositExists
		}
		if err := o.tx.Transfer(mint, caller, e.vault, 1); err != nil {
			return err
		}
		dep := &Deposit{
			Mint:      mint,
			Owner:     caller,
			TickLower: position.TickLower,
			TickUpper: position.TickUpper,
		}
		if err := o.tx.PutDeposit(dep); err != nil {
			return err
		}
		o.emit(DepositTransferred{Mint: mint, NewOwner: caller})
		created = dep.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// TransferDeposit reassigns ownership of a deposit. No token moves.
func (e *Engine) TransferDeposit(caller, mint, newOwner [20]byte) (*Deposit, error) {
	var updated *Deposit
	err := e.apply(func(o *op) error {
		if isZeroAddress(newOwner) {
			return ErrInvalidAddress
		}
		dep, err := loadDeposit(o.tx, mint)
		if err != nil {
			return err
		}
		if dep.Owner != caller {
			return ErrNotDepositOwner
		}
		oldOwner := dep.Owner
		dep.Owner = newOwner
		if err := o.tx.PutDeposit(dep); err != nil {
			return err
		}
		o.emit(DepositTransferred{Mint: mint, OldOwner: oldOwner, NewOwner: newOwner})
		updated = dep.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// WithdrawDeposit returns the custodied position to `to` and deletes the
// deposit. The deposit must not be staked in any incentive.
func (e *Engine) WithdrawDeposit(caller, mint, to [20]byte) error {
	return e.apply(func(o *op) error {
		if err := e.requireVault(); err != nil {
			return err
		}
		dep, err := loadDeposit(o.tx, mint)
		if err != nil {
			return err
		}
		if dep.Owner != caller {
			return ErrNotDepositOwner
		}
		if dep.NumberOfStakes > 0 {
			return ErrDepositStaked
		}
		if isZeroAddress(to) || to == e.vault {
			return ErrWithdrawToVault
		}
		if err := o.tx.Transfer(mint, e.vault, to, 1); err != nil {
			return err
		}
		if err := o.tx.DeleteDeposit(mint); err != nil {
			return err
		}
		o.emit(DepositTransferred{Mint: mint, OldOwner: dep.Owner})
		return nil
	})
}
