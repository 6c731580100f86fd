package staker

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"lmstaker/core/events"
)

type stakeKey struct {
	mint      [20]byte
	incentive [32]byte
}

type balanceKey struct {
	token [20]byte
	owner [20]byte
}

type mockLedger struct {
	incentives map[[32]byte]*Incentive
	deposits   map[[20]byte]*Deposit
	stakes     map[stakeKey]*Stake
	accounts   map[balanceKey]*RewardAccount
	balances   map[balanceKey]uint64
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		incentives: make(map[[32]byte]*Incentive),
		deposits:   make(map[[20]byte]*Deposit),
		stakes:     make(map[stakeKey]*Stake),
		accounts:   make(map[balanceKey]*RewardAccount),
		balances:   make(map[balanceKey]uint64),
	}
}

func (l *mockLedger) clone() *mockLedger {
	out := newMockLedger()
	for k, v := range l.incentives {
		out.incentives[k] = v.Clone()
	}
	for k, v := range l.deposits {
		out.deposits[k] = v.Clone()
	}
	for k, v := range l.stakes {
		out.stakes[k] = v.Clone()
	}
	for k, v := range l.accounts {
		out.accounts[k] = v.Clone()
	}
	for k, v := range l.balances {
		out.balances[k] = v
	}
	return out
}

type mockBackend struct {
	committed *mockLedger
	commits   int
	discards  int
	failBegin error
}

func newMockBackend() *mockBackend {
	return &mockBackend{committed: newMockLedger()}
}

func (b *mockBackend) Begin() (Tx, error) {
	if b.failBegin != nil {
		return nil, b.failBegin
	}
	return &mockTx{backend: b, ledger: b.committed.clone()}, nil
}

type mockTx struct {
	backend *mockBackend
	ledger  *mockLedger
}

func (t *mockTx) Incentive(id [32]byte) (*Incentive, bool, error) {
	inc, ok := t.ledger.incentives[id]
	return inc.Clone(), ok, nil
}

func (t *mockTx) PutIncentive(inc *Incentive) error {
	t.ledger.incentives[inc.ID] = inc.Clone()
	return nil
}

func (t *mockTx) Deposit(mint [20]byte) (*Deposit, bool, error) {
	dep, ok := t.ledger.deposits[mint]
	return dep.Clone(), ok, nil
}

func (t *mockTx) PutDeposit(dep *Deposit) error {
	t.ledger.deposits[dep.Mint] = dep.Clone()
	return nil
}

func (t *mockTx) DeleteDeposit(mint [20]byte) error {
	delete(t.ledger.deposits, mint)
	return nil
}

func (t *mockTx) Stake(mint [20]byte, incentive [32]byte) (*Stake, bool, error) {
	stake, ok := t.ledger.stakes[stakeKey{mint, incentive}]
	return stake.Clone(), ok, nil
}

func (t *mockTx) PutStake(stake *Stake) error {
	t.ledger.stakes[stakeKey{stake.Mint, stake.Incentive}] = stake.Clone()
	return nil
}

func (t *mockTx) DeleteStake(mint [20]byte, incentive [32]byte) error {
	delete(t.ledger.stakes, stakeKey{mint, incentive})
	return nil
}

func (t *mockTx) RewardAccount(token, owner [20]byte) (*RewardAccount, bool, error) {
	acct, ok := t.ledger.accounts[balanceKey{token, owner}]
	return acct.Clone(), ok, nil
}

func (t *mockTx) PutRewardAccount(acct *RewardAccount) error {
	t.ledger.accounts[balanceKey{acct.RewardToken, acct.Owner}] = acct.Clone()
	return nil
}

func (t *mockTx) Transfer(token, from, to [20]byte, amount uint64) error {
	src := balanceKey{token, from}
	if t.ledger.balances[src] < amount {
		return fmt.Errorf("insufficient balance")
	}
	t.ledger.balances[src] -= amount
	t.ledger.balances[balanceKey{token, to}] += amount
	return nil
}

func (t *mockTx) Commit() error {
	t.backend.committed = t.ledger
	t.backend.commits++
	return nil
}

func (t *mockTx) Discard() { t.backend.discards++ }

type rangeKey struct {
	pool         [20]byte
	lower, upper int32
}

type mockOracle struct {
	positions     map[[20]byte]*Position
	cumulative    map[rangeKey]RangeSnapshot
	poolLiquidity map[[20]byte]uint64
}

func newMockOracle() *mockOracle {
	return &mockOracle{
		positions:     make(map[[20]byte]*Position),
		cumulative:    make(map[rangeKey]RangeSnapshot),
		poolLiquidity: make(map[[20]byte]uint64),
	}
}

func (m *mockOracle) Position(mint [20]byte) (*Position, bool, error) {
	pos, ok := m.positions[mint]
	if !ok {
		return nil, false, nil
	}
	clone := *pos
	return &clone, true, nil
}

func (m *mockOracle) SnapshotInside(pool [20]byte, lower, upper int32) (RangeSnapshot, error) {
	return m.cumulative[rangeKey{pool, lower, upper}], nil
}

func (m *mockOracle) PoolLiquidity(pool [20]byte) (uint64, error) {
	return m.poolLiquidity[pool], nil
}

type mockLocker struct {
	params map[[20]byte]LockerParams
	power  map[[20]byte]uint64
}

func (m *mockLocker) LockerParams(locker [20]byte) (LockerParams, bool, error) {
	p, ok := m.params[locker]
	return p, ok, nil
}

func (m *mockLocker) VotingPower(_ [20]byte, owner [20]byte, _ int64) (uint64, error) {
	return m.power[owner], nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	testVault    = newTestAddress(0xAA)
	testToken    = newTestAddress(0x01)
	testPool     = newTestAddress(0x02)
	testRefundee = newTestAddress(0x03)
	testAlice    = newTestAddress(0x04)
	testBob      = newTestAddress(0x05)
	testMint     = newTestAddress(0x06)
	testMint2    = newTestAddress(0x07)
	testLocker   = newTestAddress(0x08)
)

type harness struct {
	engine  *Engine
	backend *mockBackend
	oracle  *mockOracle
	locker  *mockLocker
	events  *events.Recorder
	now     int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		engine:  NewEngine(),
		backend: newMockBackend(),
		oracle:  newMockOracle(),
		locker: &mockLocker{
			params: map[[20]byte]LockerParams{testLocker: {LockedSupply: 1000, MaxVoteMultiplier: 10}},
			power:  make(map[[20]byte]uint64),
		},
		events: &events.Recorder{},
		now:    1_000_000,
	}
	h.engine.SetBackend(h.backend)
	h.engine.SetPoolOracle(h.oracle)
	h.engine.SetLocker(h.locker)
	h.engine.SetEmitter(h.events)
	h.engine.SetVault(testVault)
	h.engine.SetNowFunc(func() int64 { return h.now })
	return h
}

func (h *harness) fund(token, owner [20]byte, amount uint64) {
	h.backend.committed.balances[balanceKey{token, owner}] += amount
}

func (h *harness) balance(token, owner [20]byte) uint64 {
	return h.backend.committed.balances[balanceKey{token, owner}]
}

func (h *harness) addPosition(mint, owner [20]byte, liquidity uint64) {
	h.oracle.positions[mint] = &Position{Mint: mint, Pool: testPool, TickLower: -60, TickUpper: 60, Liquidity: liquidity}
	h.fund(mint, owner, 1)
}

func (h *harness) setCumulative(value uint64) {
	h.oracle.cumulative[rangeKey{testPool, -60, 60}] = RangeSnapshot{SecondsPerLiquidityInsideX32: value, ObservedAt: h.now}
}

func (h *harness) key() IncentiveKey {
	return IncentiveKey{
		RewardToken: testToken,
		Pool:        testPool,
		Refundee:    testRefundee,
		StartTime:   h.now + 100,
		EndTime:     h.now + 200,
	}
}

func (h *harness) createFunded(t *testing.T, amount uint64) *Incentive {
	t.Helper()
	inc, err := h.engine.CreateIncentive(h.key())
	if err != nil {
		t.Fatalf("create incentive: %v", err)
	}
	h.fund(testToken, testRefundee, amount)
	if _, err := h.engine.AddReward(testRefundee, inc.ID, amount); err != nil {
		t.Fatalf("add reward: %v", err)
	}
	return inc
}

func TestCreateIncentiveScheduleErrors(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name  string
		start int64
		end   int64
		want  error
	}{
		{name: "start now", start: h.now, end: h.now + 10, want: ErrStartTimeNotFuture},
		{name: "start in past", start: h.now - 1, end: h.now + 10, want: ErrStartTimeNotFuture},
		{name: "start too far", start: h.now + DefaultMaxIncentiveStartLeadTime + 1, end: h.now + DefaultMaxIncentiveStartLeadTime + 10, want: ErrStartTimeTooFar},
		{name: "end equals start", start: h.now + 10, end: h.now + 10, want: ErrEndBeforeStart},
		{name: "too long", start: h.now + 10, end: h.now + 11 + DefaultMaxIncentiveDuration, want: ErrIncentiveTooLong},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			key := h.key()
			key.StartTime, key.EndTime = tc.start, tc.end
			_, err := h.engine.CreateIncentive(key)
			if !errors.Is(err, tc.want) || !errors.Is(err, ErrSchedule) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if len(h.events.Events) != 0 {
		t.Fatalf("failed creations must not emit events")
	}
	key := h.key()
	key.StartTime = h.now + DefaultMaxIncentiveStartLeadTime
	key.EndTime = key.StartTime + DefaultMaxIncentiveDuration
	if _, err := h.engine.CreateIncentive(key); err != nil {
		t.Fatalf("boundary schedule must be accepted: %v", err)
	}
}

func TestCreateIncentiveRejectsDuplicate(t *testing.T) {
	h := newHarness(t)
	inc, err := h.engine.CreateIncentive(h.key())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inc.ID != h.key().ID() {
		t.Fatalf("incentive id mismatch")
	}
	if _, err := h.engine.CreateBoostedIncentive(h.key(), testLocker); !errors.Is(err, ErrIncentiveExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	created, ok := h.events.Events[0].(IncentiveCreated)
	if !ok || created.Incentive != inc.ID {
		t.Fatalf("unexpected event %#v", h.events.Events[0])
	}
	if _, present := created.Event().Attributes["boostLocker"]; present {
		t.Fatalf("standard incentive must not carry a boost locker")
	}
}

func TestCreateBoostedIncentiveRequiresLocker(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.CreateBoostedIncentive(h.key(), newTestAddress(0x99)); !errors.Is(err, ErrUnknownLocker) {
		t.Fatalf("expected unknown locker, got %v", err)
	}
	inc, err := h.engine.CreateBoostedIncentive(h.key(), testLocker)
	if err != nil {
		t.Fatalf("create boosted: %v", err)
	}
	if locker, ok := inc.Program.BoostLocker(); !ok || locker != testLocker {
		t.Fatalf("boosted program not recorded")
	}
}

func TestAddRewardMovesCustody(t *testing.T) {
	h := newHarness(t)
	inc, err := h.engine.CreateIncentive(h.key())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.engine.AddReward(testRefundee, inc.ID, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := h.engine.AddReward(testRefundee, inc.ID, 10); err == nil {
		t.Fatalf("expected insufficient balance failure")
	}
	h.fund(testToken, testRefundee, 500)
	updated, err := h.engine.AddReward(testRefundee, inc.ID, 300)
	if err != nil {
		t.Fatalf("add reward: %v", err)
	}
	if updated.TotalRewardUnclaimed != 300 {
		t.Fatalf("unexpected pool %d", updated.TotalRewardUnclaimed)
	}
	if h.balance(testToken, testVault) != 300 || h.balance(testToken, testRefundee) != 200 {
		t.Fatalf("custody not moved")
	}
	if _, err := h.engine.AddReward(testRefundee, [32]byte{1}, 1); !errors.Is(err, ErrIncentiveNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDepositLifecycle(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.CreateDeposit(testAlice, testMint); !errors.Is(err, ErrUnknownPosition) {
		t.Fatalf("expected unknown position, got %v", err)
	}
	h.addPosition(testMint, testAlice, 100)
	dep, err := h.engine.CreateDeposit(testAlice, testMint)
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}
	if dep.TickLower != -60 || dep.TickUpper != 60 || dep.Owner != testAlice {
		t.Fatalf("unexpected deposit %+v", dep)
	}
	if h.balance(testMint, testVault) != 1 || h.balance(testMint, testAlice) != 0 {
		t.Fatalf("position not custodied")
	}
	if _, err := h.engine.CreateDeposit(testAlice, testMint); !errors.Is(err, ErrDepositExists) {
		t.Fatalf("expected duplicate deposit, got %v", err)
	}
	if _, err := h.engine.TransferDeposit(testBob, testMint, testBob); !errors.Is(err, ErrNotDepositOwner) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := h.engine.TransferDeposit(testAlice, testMint, testBob); err != nil {
		t.Fatalf("transfer deposit: %v", err)
	}
	if err := h.engine.WithdrawDeposit(testAlice, testMint, testAlice); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("previous owner must not withdraw, got %v", err)
	}
	if err := h.engine.WithdrawDeposit(testBob, testMint, testVault); !errors.Is(err, ErrWithdrawToVault) {
		t.Fatalf("expected vault guard, got %v", err)
	}
	if err := h.engine.WithdrawDeposit(testBob, testMint, testBob); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if h.balance(testMint, testBob) != 1 {
		t.Fatalf("position not returned")
	}
	if _, err := h.engine.Deposit(testMint); !errors.Is(err, ErrDepositNotFound) {
		t.Fatalf("deposit must be deleted, got %v", err)
	}
	transfers := h.events.Events
	if len(transfers) != 3 {
		t.Fatalf("expected three transfer events, got %d", len(transfers))
	}
	last := transfers[2].(DepositTransferred)
	if last.OldOwner != testBob || last.NewOwner != ([20]byte{}) {
		t.Fatalf("unexpected withdrawal event %+v", last)
	}
}

func TestStakePreconditions(t *testing.T) {
	h := newHarness(t)
	inc := h.createFunded(t, 1000)
	h.addPosition(testMint, testAlice, 10)
	if _, err := h.engine.CreateDeposit(testAlice, testMint); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.setCumulative(5)

	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); !errors.Is(err, ErrIncentiveNotStarted) {
		t.Fatalf("expected not started, got %v", err)
	}
	h.now = inc.StartTime
	h.setCumulative(5)
	if _, err := h.engine.Stake(testBob, testMint, inc.ID); !errors.Is(err, ErrNotDepositOwner) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	h.oracle.positions[testMint].Liquidity = 0
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); !errors.Is(err, ErrZeroLiquidity) {
		t.Fatalf("expected zero liquidity, got %v", err)
	}
	h.oracle.positions[testMint].Liquidity = 10
	h.oracle.positions[testMint].Pool = newTestAddress(0x77)
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); !errors.Is(err, ErrPoolMismatch) {
		t.Fatalf("expected pool mismatch, got %v", err)
	}
	h.oracle.positions[testMint].Pool = testPool

	if err := h.engine.SetParams(Params{MaxIncentiveStartLeadTime: 10, MaxIncentiveDuration: 10, MaxObservationAge: 5}); err != nil {
		t.Fatalf("set params: %v", err)
	}
	h.oracle.cumulative[rangeKey{testPool, -60, 60}] = RangeSnapshot{SecondsPerLiquidityInsideX32: 5, ObservedAt: h.now - 6}
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); !errors.Is(err, ErrStaleObservation) {
		t.Fatalf("expected stale observation, got %v", err)
	}
	h.setCumulative(5)

	stake, err := h.engine.Stake(testAlice, testMint, inc.ID)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if stake.Liquidity != 10 || stake.SecondsPerLiquidityInsideInitialX32 != 5 {
		t.Fatalf("unexpected stake %+v", stake)
	}
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); !errors.Is(err, ErrStakeExists) || !errors.Is(err, ErrState) {
		t.Fatalf("expected stake exists, got %v", err)
	}
	dep, _ := h.engine.Deposit(testMint)
	stored, _ := h.engine.Incentive(inc.ID)
	if dep.NumberOfStakes != 1 || stored.NumberOfStakes != 1 {
		t.Fatalf("counters not incremented")
	}
	if err := h.engine.WithdrawDeposit(testAlice, testMint, testAlice); !errors.Is(err, ErrDepositStaked) {
		t.Fatalf("expected staked deposit, got %v", err)
	}

	h.now = inc.EndTime
	if _, err := h.engine.Stake(testAlice, testMint2, inc.ID); !errors.Is(err, ErrIncentiveEnded) {
		t.Fatalf("expected ended, got %v", err)
	}
}

func TestStakeRequiresRewards(t *testing.T) {
	h := newHarness(t)
	inc, err := h.engine.CreateIncentive(h.key())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h.addPosition(testMint, testAlice, 10)
	if _, err := h.engine.CreateDeposit(testAlice, testMint); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.now = inc.StartTime
	h.setCumulative(0)
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); !errors.Is(err, ErrNoRewards) {
		t.Fatalf("expected no rewards, got %v", err)
	}
}

func TestFullWindowStakeEarnsWholePool(t *testing.T) {
	h := newHarness(t)
	inc := h.createFunded(t, 1000)
	h.addPosition(testMint, testAlice, 10)
	if _, err := h.engine.CreateDeposit(testAlice, testMint); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.now = inc.StartTime
	h.setCumulative(0)
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); err != nil {
		t.Fatalf("stake: %v", err)
	}
	h.now = inc.EndTime
	h.setCumulative((100 << 32) / 10)

	preview, err := h.engine.PreviewReward(testMint, inc.ID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Reward != 1000 || preview.EffectiveLiquidity != 10 {
		t.Fatalf("unexpected preview %+v", preview)
	}

	res, err := h.engine.Unstake(testAlice, testMint, inc.ID)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if res.Reward != 1000 {
		t.Fatalf("expected whole pool, got %d", res.Reward)
	}
	stored, _ := h.engine.Incentive(inc.ID)
	if stored.TotalRewardUnclaimed != 0 || stored.NumberOfStakes != 0 || stored.TotalSecondsClaimedX32 != 100<<32 {
		t.Fatalf("unexpected incentive %+v", stored)
	}
	if _, err := h.engine.Unstake(testAlice, testMint, inc.ID); !errors.Is(err, ErrStakeNotFound) {
		t.Fatalf("expected stake not found, got %v", err)
	}
	if _, err := h.engine.StakeOf(testMint, inc.ID); !errors.Is(err, ErrStakeNotFound) {
		t.Fatalf("stake must be deleted, got %v", err)
	}

	paid, err := h.engine.ClaimReward(testAlice, testToken, 0, testAlice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid != 1000 || h.balance(testToken, testAlice) != 1000 {
		t.Fatalf("claim paid %d", paid)
	}
	acct, _ := h.engine.RewardAccount(testToken, testAlice)
	if acct.RewardsOwed != 0 {
		t.Fatalf("claim all must empty the account")
	}
	paid, err = h.engine.ClaimReward(testAlice, testToken, 5, testAlice)
	if err != nil || paid != 0 {
		t.Fatalf("second claim must pay nothing, got %d, %v", paid, err)
	}
	h.now++
	if _, err := h.engine.EndIncentive(inc.ID); !errors.Is(err, ErrNoRewards) {
		t.Fatalf("expected no rewards to refund, got %v", err)
	}
}

func TestUnstakePermissions(t *testing.T) {
	h := newHarness(t)
	inc := h.createFunded(t, 1000)
	h.addPosition(testMint, testAlice, 10)
	if _, err := h.engine.CreateDeposit(testAlice, testMint); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.now = inc.StartTime
	h.setCumulative(0)
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); err != nil {
		t.Fatalf("stake: %v", err)
	}
	h.now = inc.StartTime + 50
	h.setCumulative((50 << 32) / 10)
	if _, err := h.engine.Unstake(testBob, testMint, inc.ID); !errors.Is(err, ErrNotDepositOwner) {
		t.Fatalf("expected owner-only before end, got %v", err)
	}
	h.now = inc.EndTime
	res, err := h.engine.Unstake(testBob, testMint, inc.ID)
	if err != nil {
		t.Fatalf("sweep after end: %v", err)
	}
	if res.Owner != testAlice || res.Reward != 500 {
		t.Fatalf("sweep must credit the owner, got %+v", res)
	}
	acct, err := h.engine.RewardAccount(testToken, testAlice)
	if err != nil || acct.RewardsOwed != 500 {
		t.Fatalf("owner account not credited: %+v, %v", acct, err)
	}
}

func TestBoostedUnstakeOwnerOnly(t *testing.T) {
	h := newHarness(t)
	inc, err := h.engine.CreateBoostedIncentive(h.key(), testLocker)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h.fund(testToken, testRefundee, 1000)
	if _, err := h.engine.AddReward(testRefundee, inc.ID, 1000); err != nil {
		t.Fatalf("add reward: %v", err)
	}
	h.addPosition(testMint, testAlice, 10)
	if _, err := h.engine.CreateDeposit(testAlice, testMint); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.oracle.poolLiquidity[testPool] = 10
	h.now = inc.StartTime
	h.setCumulative(0)
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); err != nil {
		t.Fatalf("stake: %v", err)
	}
	h.now = inc.EndTime + 10
	h.setCumulative((100 << 32) / 10)
	if _, err := h.engine.Unstake(testBob, testMint, inc.ID); !errors.Is(err, ErrBoostedOwnerOnly) {
		t.Fatalf("expected boosted owner-only, got %v", err)
	}
	preview, err := h.engine.PreviewReward(testMint, inc.ID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.EffectiveLiquidity != 4 || preview.BoostPercent != -60 {
		t.Fatalf("unexpected preview %+v", preview)
	}
	res, err := h.engine.Unstake(testAlice, testMint, inc.ID)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	// 4 effective liquidity over 100s against a 110s capacity
	if res.Reward != 363 {
		t.Fatalf("unexpected boosted reward %d", res.Reward)
	}
}

func TestEndIncentivePreconditions(t *testing.T) {
	h := newHarness(t)
	inc := h.createFunded(t, 1000)
	h.addPosition(testMint, testAlice, 10)
	if _, err := h.engine.CreateDeposit(testAlice, testMint); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.now = inc.StartTime
	h.setCumulative(0)
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); err != nil {
		t.Fatalf("stake: %v", err)
	}
	h.now = inc.EndTime
	if _, err := h.engine.EndIncentive(inc.ID); !errors.Is(err, ErrIncentiveNotEnded) {
		t.Fatalf("expected not ended at end time, got %v", err)
	}
	h.now = inc.EndTime + 1
	if _, err := h.engine.EndIncentive(inc.ID); !errors.Is(err, ErrIncentiveHasStakes) || !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected active stakes, got %v", err)
	}
	h.setCumulative((25 << 32) / 10)
	if _, err := h.engine.Unstake(testBob, testMint, inc.ID); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	refund, err := h.engine.EndIncentive(inc.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	stored, _ := h.engine.Incentive(inc.ID)
	if stored.TotalRewardUnclaimed != 0 || stored.TotalSecondsClaimedX32 == 0 {
		t.Fatalf("end must zero the pool and keep claimed seconds: %+v", stored)
	}
	acct, _ := h.engine.RewardAccount(testToken, testAlice)
	if refund+acct.RewardsOwed != 1000 {
		t.Fatalf("refund %d plus rewards %d must equal funding", refund, acct.RewardsOwed)
	}
	if h.balance(testToken, testRefundee) != refund {
		t.Fatalf("refund not transferred")
	}
	if _, err := h.engine.EndIncentive(inc.ID); !errors.Is(err, ErrNoRewards) {
		t.Fatalf("second end must fail, got %v", err)
	}
}

func TestConservationAcrossStakers(t *testing.T) {
	h := newHarness(t)
	inc := h.createFunded(t, 1_000_003)
	h.addPosition(testMint, testAlice, 7)
	h.addPosition(testMint2, testBob, 13)
	if _, err := h.engine.CreateDeposit(testAlice, testMint); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if _, err := h.engine.CreateDeposit(testBob, testMint2); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	// both positions share the range; the cumulative grows by 1/20 per second
	perSecond := uint64(1<<32) / 20
	h.now = inc.StartTime + 10
	h.setCumulative(10 * perSecond)
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); err != nil {
		t.Fatalf("stake alice: %v", err)
	}
	if _, err := h.engine.Stake(testBob, testMint2, inc.ID); err != nil {
		t.Fatalf("stake bob: %v", err)
	}
	h.now = inc.StartTime + 70
	h.setCumulative(70 * perSecond)
	if _, err := h.engine.Unstake(testBob, testMint2, inc.ID); err != nil {
		t.Fatalf("unstake bob: %v", err)
	}
	h.now = inc.EndTime + 30
	h.setCumulative(100 * perSecond)
	if _, err := h.engine.Unstake(testAlice, testMint, inc.ID); err != nil {
		t.Fatalf("unstake alice: %v", err)
	}
	refund, err := h.engine.EndIncentive(inc.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	var claimed uint64
	for _, owner := range [][20]byte{testAlice, testBob} {
		paid, err := h.engine.ClaimReward(owner, testToken, 0, owner)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		claimed += paid
	}
	if claimed+refund != 1_000_003 {
		t.Fatalf("conservation violated: claimed %d refund %d", claimed, refund)
	}
	if h.balance(testToken, testVault) != 0 {
		t.Fatalf("vault must be drained, holds %d", h.balance(testToken, testVault))
	}
}

func TestRandomSequencesConserveRewards(t *testing.T) {
	const stakers = 4
	for seed := int64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			h := newHarness(t)

			var owners, mints [stakers][20]byte
			var poolLiquidity uint64
			for i := 0; i < stakers; i++ {
				owners[i] = newTestAddress(byte(0x10 + i))
				mints[i] = newTestAddress(byte(0x20 + i))
				liquidity := uint64(1 + rng.Intn(100))
				poolLiquidity += liquidity
				h.addPosition(mints[i], owners[i], liquidity)
				if _, err := h.engine.CreateDeposit(owners[i], mints[i]); err != nil {
					t.Fatalf("deposit %d: %v", i, err)
				}
			}
			// every position covers the same range, so the range accrues
			// 1/poolLiquidity seconds per liquidity unit each second
			perSecond := uint64(1<<32) / poolLiquidity
			var cumulative uint64
			h.setCumulative(cumulative)

			var ids [][32]byte
			for _, refundee := range [][20]byte{testRefundee, testBob} {
				key := h.key()
				key.Refundee = refundee
				inc, err := h.engine.CreateIncentive(key)
				if err != nil {
					t.Fatalf("create incentive: %v", err)
				}
				ids = append(ids, inc.ID)
			}

			var added, claimed, refunded uint64
			addReward := func(id [32]byte, payer [20]byte) {
				amount := uint64(1 + rng.Intn(10_000))
				h.fund(testToken, payer, amount)
				if _, err := h.engine.AddReward(payer, id, amount); err != nil {
					t.Fatalf("add reward: %v", err)
				}
				added += amount
			}
			tolerate := func(op string, err error) {
				if err == nil {
					return
				}
				switch Kind(err) {
				case "arithmetic", "internal":
					t.Fatalf("%s: %v", op, err)
				}
			}
			for _, id := range ids {
				addReward(id, newTestAddress(0x30))
			}

			for step := 0; step < 250; step++ {
				dt := int64(rng.Intn(3))
				h.now += dt
				cumulative += uint64(dt) * perSecond
				h.setCumulative(cumulative)

				i := rng.Intn(stakers)
				id := ids[rng.Intn(len(ids))]
				switch rng.Intn(6) {
				case 0, 1:
					_, err := h.engine.Stake(owners[i], mints[i], id)
					tolerate("stake", err)
				case 2:
					caller := owners[i]
					if rng.Intn(2) == 0 {
						caller = owners[rng.Intn(stakers)]
					}
					_, err := h.engine.Unstake(caller, mints[i], id)
					tolerate("unstake", err)
				case 3:
					paid, err := h.engine.ClaimReward(owners[i], testToken, uint64(rng.Intn(500)), owners[i])
					tolerate("claim", err)
					claimed += paid
				case 4:
					addReward(id, newTestAddress(0x30))
				case 5:
					refund, err := h.engine.EndIncentive(id)
					tolerate("end", err)
					refunded += refund
				}
			}

			h.now += 1_000
			cumulative += 1_000 * perSecond
			h.setCumulative(cumulative)
			for i := 0; i < stakers; i++ {
				for _, id := range ids {
					if _, err := h.engine.Unstake(owners[(i+1)%stakers], mints[i], id); err != nil && !errors.Is(err, ErrStakeNotFound) {
						t.Fatalf("final unstake: %v", err)
					}
				}
			}
			for _, id := range ids {
				refund, err := h.engine.EndIncentive(id)
				if err != nil && !errors.Is(err, ErrNoRewards) {
					t.Fatalf("final end: %v", err)
				}
				refunded += refund
			}
			for i := 0; i < stakers; i++ {
				paid, err := h.engine.ClaimReward(owners[i], testToken, 0, owners[i])
				if err != nil && !errors.Is(err, ErrRewardAccountAbsent) {
					t.Fatalf("final claim: %v", err)
				}
				claimed += paid
			}

			if claimed+refunded != added {
				t.Fatalf("conservation violated: claimed %d + refunded %d != added %d", claimed, refunded, added)
			}
			if vault := h.balance(testToken, testVault); vault != 0 {
				t.Fatalf("vault must be drained, holds %d", vault)
			}
		})
	}
}

func TestVaultCannotFundItself(t *testing.T) {
	h := newHarness(t)
	inc, err := h.engine.CreateIncentive(h.key())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.engine.AddReward(testVault, inc.ID, 5000); !errors.Is(err, ErrVaultAsPayer) || Kind(err) != "precondition" {
		t.Fatalf("expected vault payer rejection, got %v", err)
	}
	stored, _ := h.engine.Incentive(inc.ID)
	if stored.TotalRewardUnclaimed != 0 {
		t.Fatalf("pool credited without funds: %d", stored.TotalRewardUnclaimed)
	}

	h.addPosition(testMint, testVault, 10)
	if _, err := h.engine.CreateDeposit(testVault, testMint); !errors.Is(err, ErrVaultAsPayer) {
		t.Fatalf("expected vault depositor rejection, got %v", err)
	}
}

func TestClaimToVaultRejected(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.CreateRewardAccount(testToken, testAlice); err != nil {
		t.Fatalf("create account: %v", err)
	}
	h.backend.committed.accounts[balanceKey{testToken, testAlice}].RewardsOwed = 100
	h.fund(testToken, testVault, 100)

	if _, err := h.engine.ClaimReward(testAlice, testToken, 0, testVault); !errors.Is(err, ErrClaimToVault) || Kind(err) != "precondition" {
		t.Fatalf("expected claim to vault rejection, got %v", err)
	}
	acct, _ := h.engine.RewardAccount(testToken, testAlice)
	if acct.RewardsOwed != 100 || h.balance(testToken, testVault) != 100 {
		t.Fatalf("rejected claim must leave balances: owed %d vault %d", acct.RewardsOwed, h.balance(testToken, testVault))
	}
}

func TestUnstakeMissingStakeIsStateErrorForAnyCaller(t *testing.T) {
	h := newHarness(t)
	inc := h.createFunded(t, 1000)
	h.addPosition(testMint, testAlice, 10)
	if _, err := h.engine.CreateDeposit(testAlice, testMint); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.now = inc.StartTime + 10
	h.setCumulative(0)
	if _, err := h.engine.Unstake(testBob, testMint, inc.ID); !errors.Is(err, ErrStakeNotFound) || Kind(err) != "state" {
		t.Fatalf("expected stake not found for a non-owner, got %v", err)
	}

	boosted, err := h.engine.CreateBoostedIncentive(h.key(), testLocker)
	if err != nil {
		t.Fatalf("create boosted: %v", err)
	}
	if _, err := h.engine.Unstake(testBob, testMint, boosted.ID); !errors.Is(err, ErrStakeNotFound) {
		t.Fatalf("expected stake not found on boosted incentive, got %v", err)
	}
}

func TestFutureObservationIsStale(t *testing.T) {
	h := newHarness(t)
	inc := h.createFunded(t, 1000)
	h.addPosition(testMint, testAlice, 10)
	if _, err := h.engine.CreateDeposit(testAlice, testMint); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.now = inc.StartTime
	if err := h.engine.SetParams(Params{MaxIncentiveStartLeadTime: 10, MaxIncentiveDuration: 10, MaxObservationAge: 5}); err != nil {
		t.Fatalf("set params: %v", err)
	}
	h.oracle.cumulative[rangeKey{testPool, -60, 60}] = RangeSnapshot{SecondsPerLiquidityInsideX32: 5, ObservedAt: h.now + 1}
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); !errors.Is(err, ErrStaleObservation) {
		t.Fatalf("expected future observation to be rejected, got %v", err)
	}

	h.engine.SetParams(Params{MaxIncentiveStartLeadTime: 10, MaxIncentiveDuration: 10})
	if _, err := h.engine.Stake(testAlice, testMint, inc.ID); err != nil {
		t.Fatalf("staleness disabled: %v", err)
	}
}

func TestClaimPartialAndMissingAccount(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.ClaimReward(testAlice, testToken, 0, testAlice); !errors.Is(err, ErrRewardAccountAbsent) {
		t.Fatalf("expected missing account, got %v", err)
	}
	acct, err := h.engine.CreateRewardAccount(testToken, testAlice)
	if err != nil || acct.RewardsOwed != 0 {
		t.Fatalf("create account: %+v, %v", acct, err)
	}
	h.backend.committed.accounts[balanceKey{testToken, testAlice}].RewardsOwed = 100
	h.fund(testToken, testVault, 100)
	again, err := h.engine.CreateRewardAccount(testToken, testAlice)
	if err != nil || again.RewardsOwed != 100 {
		t.Fatalf("create must be idempotent: %+v, %v", again, err)
	}
	paid, err := h.engine.ClaimReward(testAlice, testToken, 30, testBob)
	if err != nil || paid != 30 {
		t.Fatalf("partial claim: %d, %v", paid, err)
	}
	paid, err = h.engine.ClaimReward(testAlice, testToken, 500, testBob)
	if err != nil || paid != 70 {
		t.Fatalf("capped claim: %d, %v", paid, err)
	}
	if h.balance(testToken, testBob) != 100 {
		t.Fatalf("destination not paid")
	}
}

func TestFailedOperationDiscardsAndEmitsNothing(t *testing.T) {
	h := newHarness(t)
	inc, err := h.engine.CreateIncentive(h.key())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before := len(h.events.Events)
	commits := h.backend.commits
	h.fund(testToken, testRefundee, 5)
	if _, err := h.engine.AddReward(testRefundee, inc.ID, 10); err == nil {
		t.Fatalf("expected custody failure")
	}
	if len(h.events.Events) != before || h.backend.commits != commits {
		t.Fatalf("failed operation must not commit or emit")
	}
	stored, _ := h.engine.Incentive(inc.ID)
	if stored.TotalRewardUnclaimed != 0 {
		t.Fatalf("partial write observed")
	}
}

func TestEngineRequiresBackend(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.CreateIncentive(IncentiveKey{}); !errors.Is(err, errNilBackend) {
		t.Fatalf("expected missing backend, got %v", err)
	}
	if Kind(errNilBackend) != "internal" || Kind(ErrOverflow) != "arithmetic" {
		t.Fatalf("unexpected kinds")
	}
}
