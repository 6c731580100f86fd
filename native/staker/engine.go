package staker

import (
	"sync"
	"time"

	"lmstaker/core/events"
)

// Ledger persists the staker records inside one unit of work. Lookups report
// absence through the boolean instead of an error.
type Ledger interface {
	Incentive(id [32]byte) (*Incentive, bool, error)
	PutIncentive(inc *Incentive) error
	Deposit(mint [20]byte) (*Deposit, bool, error)
	PutDeposit(dep *Deposit) error
	DeleteDeposit(mint [20]byte) error
	Stake(mint [20]byte, incentive [32]byte) (*Stake, bool, error)
	PutStake(stake *Stake) error
	DeleteStake(mint [20]byte, incentive [32]byte) error
	RewardAccount(token, owner [20]byte) (*RewardAccount, bool, error)
	PutRewardAccount(acct *RewardAccount) error
}

// Custody moves fungible balances and position tokens. Transfer must fail when
// the source balance is insufficient.
type Custody interface {
	Transfer(token, from, to [20]byte, amount uint64) error
}

// Tx is an all-or-nothing unit of work over the ledger and custody. Nothing
// written through a Tx is observable until Commit succeeds.
type Tx interface {
	Ledger
	Custody
	Commit() error
	Discard()
}

// Backend opens units of work.
type Backend interface {
	Begin() (Tx, error)
}

// PoolOracle exposes the AMM values consumed by the engine.
type PoolOracle interface {
	// Position returns the AMM view of a position mint.
	Position(mint [20]byte) (*Position, bool, error)
	// SnapshotInside returns the cumulative seconds-per-liquidity inside
	// [tickLower, tickUpper] of pool.
	SnapshotInside(pool [20]byte, tickLower, tickUpper int32) (RangeSnapshot, error)
	// PoolLiquidity returns the pool's current in-range liquidity.
	PoolLiquidity(pool [20]byte) (uint64, error)
}

// Locker exposes the governance escrow values consumed by boosted incentives.
type Locker interface {
	LockerParams(locker [20]byte) (LockerParams, bool, error)
	VotingPower(locker, owner [20]byte, at int64) (uint64, error)
}

// Engine implements the incentive registry, deposit ledger, stake tracker and
// reward accounts on top of a transactional backend. Every exported mutation
// runs under a single lock, commits once and emits its events after commit.
type Engine struct {
	mu      sync.Mutex
	backend Backend
	oracle  PoolOracle
	locker  Locker
	emitter events.Emitter
	params  Params
	vault   [20]byte
	nowFn   func() int64
}

// NewEngine creates an engine with default parameters and a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		params:  DefaultParams(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetBackend configures the storage backend.
func (e *Engine) SetBackend(backend Backend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backend = backend
}

// SetPoolOracle configures the AMM oracle.
func (e *Engine) SetPoolOracle(oracle PoolOracle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.oracle = oracle
}

// SetLocker configures the governance locker used by boosted incentives.
func (e *Engine) SetLocker(locker Locker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locker = locker
}

// SetVault configures the custody address holding deposits and reward pools.
func (e *Engine) SetVault(vault [20]byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vault = vault
}

// Vault returns the configured custody address.
func (e *Engine) Vault() [20]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vault
}

// SetParams replaces the schedule limits after validating them.
func (e *Engine) SetParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = params
	return nil
}

// Params returns the active schedule limits.
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// op is the context of one unit of work.
type op struct {
	tx      Tx
	now     int64
	pending []events.Event
}

func (o *op) emit(evt events.Event) { o.pending = append(o.pending, evt) }

// apply runs fn as one atomic transition. On error the unit of work is
// discarded and no event is emitted.
func (e *Engine) apply(fn func(o *op) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend == nil {
		return errNilBackend
	}
	tx, err := e.backend.Begin()
	if err != nil {
		return err
	}
	o := &op{tx: tx, now: e.now()}
	if err := fn(o); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for _, evt := range o.pending {
		e.emitter.Emit(evt)
	}
	return nil
}

// view runs fn against a unit of work that is always discarded.
func (e *Engine) view(fn func(o *op) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.backend == nil {
		return errNilBackend
	}
	tx, err := e.backend.Begin()
	if err != nil {
		return err
	}
	defer tx.Discard()
	return fn(&op{tx: tx, now: e.now()})
}

func (e *Engine) requireVault() error {
	if isZeroAddress(e.vault) {
		return errNilVault
	}
	return nil
}

func loadIncentive(tx Tx, id [32]byte) (*Incentive, error) {
	inc, ok, err := tx.Incentive(id)
	if err != nil {
		return nil, err
	}
	if !ok || inc == nil {
		return nil, ErrIncentiveNotFound
	}
	return inc, nil
}

func loadDeposit(tx Tx, mint [20]byte) (*Deposit, error) {
	dep, ok, err := tx.Deposit(mint)
	if err != nil {
		return nil, err
	}
	if !ok || dep == nil {
		return nil, ErrDepositNotFound
	}
	return dep, nil
}

// Incentive returns the stored incentive.
func (e *Engine) Incentive(id [32]byte) (*Incentive, error) {
	var out *Incentive
	err := e.view(func(o *op) error {
		inc, err := loadIncentive(o.tx, id)
		out = inc
		return err
	})
	return out, err
}

// Deposit returns the stored deposit.
func (e *Engine) Deposit(mint [20]byte) (*Deposit, error) {
	var out *Deposit
	err := e.view(func(o *op) error {
		dep, err := loadDeposit(o.tx, mint)
		out = dep
		return err
	})
	return out, err
}

// StakeOf returns the active stake of a (deposit, incentive) pair.
func (e *Engine) StakeOf(mint [20]byte, incentive [32]byte) (*Stake, error) {
	var out *Stake
	err := e.view(func(o *op) error {
		stake, ok, err := o.tx.Stake(mint, incentive)
		if err != nil {
			return err
		}
		if !ok || stake == nil {
			return ErrStakeNotFound
		}
		out = stake
		return nil
	})
	return out, err
}

// RewardAccount returns the claimable balance of owner in token.
func (e *Engine) RewardAccount(token, owner [20]byte) (*RewardAccount, error) {
	var out *RewardAccount
	err := e.view(func(o *op) error {
		acct, ok, err := o.tx.RewardAccount(token, owner)
		if err != nil {
			return err
		}
		if !ok || acct == nil {
			return ErrRewardAccountAbsent
		}
		out = acct
		return nil
	})
	return out, err
}
