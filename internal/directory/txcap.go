package directory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ajitpratap0/facultyhub/internal/store"
)

// UnitOfWork runs a group of store writes. An atomic unit commits them all or none;
// a direct unit applies them one by one and may leave partial state on failure.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, s store.Store) error) error
	Atomic() bool
}

type atomicUnit struct {
	tr store.Transactor
}

func (u atomicUnit) Do(ctx context.Context, fn func(ctx context.Context, s store.Store) error) error {
	return u.tr.RunInTx(ctx, fn)
}

func (u atomicUnit) Atomic() bool { return true }

type directUnit struct {
	s store.Store
}

func (u directUnit) Do(ctx context.Context, fn func(ctx context.Context, s store.Store) error) error {
	return fn(ctx, u.s)
}

func (u directUnit) Atomic() bool { return false }

// TxDetector decides whether the store can run multi-record transactions.
type TxDetector struct {
	store  store.Store
	cache  bool
	logger *slog.Logger

	mu     sync.Mutex
	probed bool
	answer bool
}

// NewTxDetector creates a detector. With cache set, the first successful probe is
// reused for the life of the process; otherwise every call probes the store.
func NewTxDetector(s store.Store, cache bool, logger *slog.Logger) *TxDetector {
	return &TxDetector{store: s, cache: cache, logger: logger}
}

// CanUseTransactions reports whether the store supports multi-record transactions
// right now. Probe failures count as "no".
func (d *TxDetector) CanUseTransactions(ctx context.Context) bool {
	tr, ok := d.store.(store.Transactor)
	if !ok {
		return false
	}
	if d.cache {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.probed {
			return d.answer
		}
	}

	supported, err := tr.ProbeTransactions(ctx)
	if err != nil {
		d.logger.Warn("transaction probe failed, using best-effort writes", "error", err)
		return false
	}
	if d.cache {
		d.probed, d.answer = true, supported
	}
	return supported
}

// UnitOfWork returns the unit matching the store's current capability.
func (d *TxDetector) UnitOfWork(ctx context.Context) UnitOfWork {
	if d.CanUseTransactions(ctx) {
		return atomicUnit{tr: d.store.(store.Transactor)}
	}
	return directUnit{s: d.store}
}
