/*
engine.go - Balance mutation engine (charge / use)

PURPOSE:
  The only writer of balances. Orchestrates lock, validation,
  read-modify-write, history append and failure recording. Owns no state of
  its own; the stores and the lock registry are handed in.

STATE MACHINE (per request):
  START -> LOCKED -> VALIDATED -> WRITTEN -> LOGGED -> DONE
    |        |
    +--------+--> ERROR -> (release lock) -> FailedEvent -> return error

  START->LOCKED      acquire per-user lock (policy decides block vs busy)
  LOCKED->VALIDATED  read balance (absent = 0), check amount / ceiling / funds
  VALIDATED->WRITTEN Put new balance
  WRITTEN->LOGGED    append signed HistoryEntry with the same timestamp
  LOGGED->DONE       release lock, return updated account

ORDERING GUARANTEE:
  The history append happens after the balance write and before the lock is
  released, so no reader can ever see a balance change that has no history
  entry once the mutation returns. If the append fails the balance is put
  back to its previous value while still holding the lock.

FAILURES:
  Every error out of a mutation (busy, validation, cancellation, store fault)
  is recorded in the FailedEventLog after the lock is released, then returned
  unmodified. The record is written with a context detached from the
  caller's cancellation.

UNKNOWN USERS:
  A user with no account reads as balance 0, so the first charge creates the
  account and a first use of a positive amount fails with insufficient balance.
*/
package point

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/warp/point-engine/point"

// =============================================================================
// STAGES
// =============================================================================

// Stage is how far a mutation got. Used for logs and spans.
type Stage int

const (
	StageStart Stage = iota
	StageLocked
	StageValidated
	StageWritten
	StageLogged
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageLocked:
		return "locked"
	case StageValidated:
		return "validated"
	case StageWritten:
		return "written"
	case StageLogged:
		return "logged"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

type mutation struct {
	op     TxType
	userID UserID
	amount int64
	stage  Stage
}

// signedAmount is what goes into the history: +A for charge, -A for use.
func (m *mutation) signedAmount() int64 {
	if m.op == TxUse {
		return -m.amount
	}
	return m.amount
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Accounts AccountStore
	History  HistoryLog
	Failures FailedEventLog
	Locks    *LockRegistry
	Policy   Policy

	// Now is the clock; defaults to time.Now.
	Now    func() time.Time
	Log    *log.Logger
	Tracer trace.Tracer
}

func NewEngine(stores Stores, policy Policy) *Engine {
	return &Engine{
		Accounts: stores.Accounts,
		History:  stores.History,
		Failures: stores.Failures,
		Locks:    NewLockRegistry(),
		Policy:   policy,
		Now:      time.Now,
		Log:      log.Default(),
		Tracer:   otel.Tracer(instrumentationName),
	}
}

// Charge adds amount to the user's balance.
func (e *Engine) Charge(ctx context.Context, userID UserID, amount int64) (Account, error) {
	return e.mutate(ctx, TxCharge, userID, amount)
}

// Use subtracts amount from the user's balance.
func (e *Engine) Use(ctx context.Context, userID UserID, amount int64) (Account, error) {
	return e.mutate(ctx, TxUse, userID, amount)
}

func (e *Engine) mutate(ctx context.Context, op TxType, userID UserID, amount int64) (Account, error) {
	ctx, span := e.tracer().Start(ctx, "point."+strings.ToLower(string(op)),
		trace.WithAttributes(
			attribute.Int64("point.user_id", int64(userID)),
			attribute.Int64("point.amount", amount),
			attribute.String("point.lock_policy", e.Policy.LockPolicy.String()),
		))
	defer span.End()

	m := &mutation{op: op, userID: userID, amount: amount}
	acct, err := e.run(ctx, m)
	if err != nil {
		span.SetAttributes(attribute.String("point.stage", m.stage.String()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.recordFailure(ctx, m, err)
		return Account{}, err
	}
	m.stage = StageDone
	span.SetAttributes(
		attribute.String("point.stage", m.stage.String()),
		attribute.Int64("point.balance", acct.Balance),
	)
	return acct, nil
}

// run executes START..DONE. The deferred Release means the lock is always
// free again by the time mutate records a failure.
func (e *Engine) run(ctx context.Context, m *mutation) (Account, error) {
	h, err := e.Locks.AcquireWith(ctx, e.Policy.LockPolicy, m.userID)
	if err != nil {
		return Account{}, err
	}
	defer h.Release()
	m.stage = StageLocked

	cur, ok, err := e.Accounts.Get(ctx, m.userID)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		cur = EmptyAccount(m.userID)
	}

	next, err := e.validate(m, cur.Balance)
	if err != nil {
		return Account{}, err
	}
	m.stage = StageValidated

	now := e.now()
	acct, err := e.Accounts.Put(ctx, m.userID, next, now)
	if err != nil {
		return Account{}, err
	}
	m.stage = StageWritten

	if _, err := e.History.Append(ctx, m.userID, m.signedAmount(), m.op, now); err != nil {
		e.restore(ctx, cur)
		return Account{}, err
	}
	m.stage = StageLogged
	return acct, nil
}

func (e *Engine) validate(m *mutation, balance int64) (int64, error) {
	if m.amount < 0 {
		return 0, &InvalidAmountError{Operation: m.op, Amount: m.amount}
	}

	switch m.op {
	case TxCharge:
		next, ok := e.Policy.chargedBalance(balance, m.amount)
		if !ok {
			return 0, &CeilingExceededError{
				UserID:  m.userID,
				Balance: balance,
				Amount:  m.amount,
				Ceiling: e.Policy.ceiling(),
			}
		}
		return next, nil

	case TxUse:
		if m.amount > balance {
			return 0, &InsufficientBalanceError{
				UserID:    m.userID,
				Available: balance,
				Requested: m.amount,
			}
		}
		return balance - m.amount, nil
	}

	return 0, fmt.Errorf("unknown operation %q", m.op)
}

// restore puts the pre-mutation balance back after a failed history append.
// Caller holds the user's lock.
func (e *Engine) restore(ctx context.Context, prev Account) {
	ctx = context.WithoutCancel(ctx)
	if _, err := e.Accounts.Put(ctx, prev.UserID, prev.Balance, prev.UpdatedAt); err != nil {
		e.logf("[Engine] user %d: restore balance %d after history failure: %v",
			prev.UserID, prev.Balance, err)
	}
}

func (e *Engine) recordFailure(ctx context.Context, m *mutation, cause error) {
	e.logf("[Engine] %s rejected: user=%d amount=%d stage=%s err=%v",
		m.op, m.userID, m.amount, m.stage, cause)

	ctx = context.WithoutCancel(ctx)
	if _, err := e.Failures.Append(ctx, m.userID, m.op, m.amount, cause.Error(), e.now()); err != nil {
		e.logf("[Engine] user %d: record failed %s: %v", m.userID, m.op, err)
	}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Engine) tracer() trace.Tracer {
	if e.Tracer == nil {
		return otel.Tracer(instrumentationName)
	}
	return e.Tracer
}

func (e *Engine) logf(format string, args ...any) {
	if e.Log == nil {
		return
	}
	e.Log.Printf(format, args...)
}
