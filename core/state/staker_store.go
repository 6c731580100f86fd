package state

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"lmstaker/native/staker"
	"lmstaker/storage"
)

var (
	// ErrInsufficientBalance is returned when a custody debit exceeds the
	// available balance. It carries the precondition kind.
	ErrInsufficientBalance = fmt.Errorf("%w: bank: insufficient balance", staker.ErrPrecondition)
	errNilRecord           = errors.New("state: nil record")
)

// StakerStore persists the staker ledger and custody balances on a
// storage.Database. Units of work opened with Begin are serialised: a second
// Begin blocks until the first one is committed or discarded.
type StakerStore struct {
	db storage.Database
	mu sync.Mutex
}

// NewStakerStore wraps db.
func NewStakerStore(db storage.Database) *StakerStore {
	return &StakerStore{db: db}
}

// Begin opens a unit of work. The returned transaction must be committed or
// discarded.
func (s *StakerStore) Begin() (staker.Tx, error) {
	return s.begin(), nil
}

func (s *StakerStore) begin() *StakerTx {
	s.mu.Lock()
	overlay := storage.NewOverlay(s.db)
	return &StakerTx{records: records{kv: overlay}, overlay: overlay, release: s.mu.Unlock}
}

// Update runs fn in its own unit of work and commits it when fn succeeds.
func (s *StakerStore) Update(fn func(tx *StakerTx) error) error {
	tx := s.begin()
	if err := fn(tx); err != nil {
		tx.Discard()
		return err
	}
	return tx.Commit()
}

// Incentives lists every stored incentive ordered by id.
func (s *StakerStore) Incentives() ([]*staker.Incentive, error) {
	return records{kv: s.db}.incentives()
}

// DepositsOf lists the deposits currently owned by owner.
func (s *StakerStore) DepositsOf(owner [20]byte) ([]*staker.Deposit, error) {
	return records{kv: s.db}.depositsOf(owner)
}

// StakesOf lists the active stakes of a deposit.
func (s *StakerStore) StakesOf(mint [20]byte) ([]*staker.Stake, error) {
	return records{kv: s.db}.stakesOf(mint)
}

// RewardAccountsOf lists the reward accounts of owner across tokens.
func (s *StakerStore) RewardAccountsOf(owner [20]byte) ([]*staker.RewardAccount, error) {
	return records{kv: s.db}.rewardAccountsOf(owner)
}

// Balance returns the custody balance of owner in token.
func (s *StakerStore) Balance(token, owner [20]byte) (*big.Int, error) {
	return records{kv: s.db}.balance(token, owner)
}

// Mint credits amount of token to `to` in its own unit of work.
func (s *StakerStore) Mint(token, to [20]byte, amount uint64) error {
	return s.Update(func(tx *StakerTx) error { return tx.Mint(token, to, amount) })
}

// StakerTx is a unit of work over the staker ledger and custody balances.
type StakerTx struct {
	records
	overlay *storage.Overlay
	release func()
}

// Commit writes the unit of work as one batch.
func (tx *StakerTx) Commit() error {
	defer tx.done()
	return tx.overlay.Commit()
}

// Discard drops every buffered write.
func (tx *StakerTx) Discard() {
	tx.overlay.Discard()
	tx.done()
}

func (tx *StakerTx) done() {
	if tx.release != nil {
		tx.release()
		tx.release = nil
	}
}

// Transfer moves amount of token from one owner to another. A transfer to the
// sender still requires the sender to hold amount.
func (tx *StakerTx) Transfer(token, from, to [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	value := new(big.Int).SetUint64(amount)
	if from == to {
		current, err := tx.balance(token, from)
		if err != nil {
			return err
		}
		if current.Cmp(value) < 0 {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, current, value)
		}
		return nil
	}
	if err := tx.debit(token, from, value); err != nil {
		return err
	}
	return tx.credit(token, to, value)
}

// Mint credits newly issued amount of token to `to`.
func (tx *StakerTx) Mint(token, to [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return tx.credit(token, to, new(big.Int).SetUint64(amount))
}

// Burn destroys amount of token held by from.
func (tx *StakerTx) Burn(token, from [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return tx.debit(token, from, new(big.Int).SetUint64(amount))
}

func (tx *StakerTx) debit(token, owner [20]byte, amount *big.Int) error {
	current, err := tx.balance(token, owner)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, current, amount)
	}
	return tx.putBalance(token, owner, current.Sub(current, amount))
}

func (tx *StakerTx) credit(token, owner [20]byte, amount *big.Int) error {
	current, err := tx.balance(token, owner)
	if err != nil {
		return err
	}
	return tx.putBalance(token, owner, current.Add(current, amount))
}

// records implements the staker ledger on any key/value view.
type records struct {
	kv storage.KV
}

func (r records) get(key []byte, out interface{}) (bool, error) {
	data, err := r.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (r records) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return r.kv.Put(key, encoded)
}

func (r records) Incentive(id [32]byte) (*staker.Incentive, bool, error) {
	stored := new(storedIncentive)
	ok, err := r.get(incentiveKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toIncentive(), true, nil
}

func (r records) PutIncentive(inc *staker.Incentive) error {
	if inc == nil {
		return errNilRecord
	}
	return r.put(incentiveKey(inc.ID), newStoredIncentive(inc))
}

func (r records) Deposit(mint [20]byte) (*staker.Deposit, bool, error) {
	stored := new(storedDeposit)
	ok, err := r.get(depositKey(mint), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toDeposit(), true, nil
}

func (r records) PutDeposit(dep *staker.Deposit) error {
	if dep == nil {
		return errNilRecord
	}
	return r.put(depositKey(dep.Mint), newStoredDeposit(dep))
}

func (r records) DeleteDeposit(mint [20]byte) error {
	return r.kv.Delete(depositKey(mint))
}

func (r records) Stake(mint [20]byte, incentive [32]byte) (*staker.Stake, bool, error) {
	stake := new(staker.Stake)
	ok, err := r.get(stakeKey(mint, incentive), stake)
	if err != nil || !ok {
		return nil, false, err
	}
	return stake, true, nil
}

func (r records) PutStake(stake *staker.Stake) error {
	if stake == nil {
		return errNilRecord
	}
	return r.put(stakeKey(stake.Mint, stake.Incentive), stake)
}

func (r records) DeleteStake(mint [20]byte, incentive [32]byte) error {
	return r.kv.Delete(stakeKey(mint, incentive))
}

func (r records) RewardAccount(token, owner [20]byte) (*staker.RewardAccount, bool, error) {
	acct := new(staker.RewardAccount)
	ok, err := r.get(rewardAccountKey(token, owner), acct)
	if err != nil || !ok {
		return nil, false, err
	}
	return acct, true, nil
}

func (r records) PutRewardAccount(acct *staker.RewardAccount) error {
	if acct == nil {
		return errNilRecord
	}
	return r.put(rewardAccountKey(acct.RewardToken, acct.Owner), acct)
}

func (r records) balance(token, owner [20]byte) (*big.Int, error) {
	stored := new(storedBalance)
	ok, err := r.get(balanceKey(token, owner), stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored.Amount == nil {
		return big.NewInt(0), nil
	}
	return stored.Amount, nil
}

func (r records) putBalance(token, owner [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return r.kv.Delete(balanceKey(token, owner))
	}
	return r.put(balanceKey(token, owner), &storedBalance{Amount: amount})
}

func (r records) incentives() ([]*staker.Incentive, error) {
	var out []*staker.Incentive
	err := r.kv.Iterate(stakerIncentivePrefix, func(key, value []byte) error {
		stored := new(storedIncentive)
		if err := rlp.DecodeBytes(value, stored); err != nil {
			return fmt.Errorf("decode incentive %x: %w", key, err)
		}
		out = append(out, stored.toIncentive())
		return nil
	})
	return out, err
}

func (r records) depositsOf(owner [20]byte) ([]*staker.Deposit, error) {
	var out []*staker.Deposit
	err := r.kv.Iterate(stakerDepositPrefix, func(key, value []byte) error {
		stored := new(storedDeposit)
		if err := rlp.DecodeBytes(value, stored); err != nil {
			return fmt.Errorf("decode deposit %x: %w", key, err)
		}
		if stored.Owner == owner {
			out = append(out, stored.toDeposit())
		}
		return nil
	})
	return out, err
}

func (r records) stakesOf(mint [20]byte) ([]*staker.Stake, error) {
	var out []*staker.Stake
	err := r.kv.Iterate(stakesOfPrefix(mint), func(key, value []byte) error {
		stake := new(staker.Stake)
		if err := rlp.DecodeBytes(value, stake); err != nil {
			return fmt.Errorf("decode stake %x: %w", key, err)
		}
		out = append(out, stake)
		return nil
	})
	return out, err
}

func (r records) rewardAccountsOf(owner [20]byte) ([]*staker.RewardAccount, error) {
	var out []*staker.RewardAccount
	err := r.kv.Iterate(stakerRewardPrefix, func(key, value []byte) error {
		acct := new(staker.RewardAccount)
		if err := rlp.DecodeBytes(value, acct); err != nil {
			return fmt.Errorf("decode reward account %x: %w", key, err)
		}
		if acct.Owner == owner {
			out = append(out, acct)
		}
		return nil
	})
	return out, err
}
