package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

// accountSlot 單一帳戶的鎖、帳本與 WAL
type accountSlot struct {
	mu     sync.Mutex
	ledger *domain.AccountLedger
	wal    *wal.WAL
}

// MutexLedger 是一個使用 Mutex 實現的帳本 (每個帳戶一把鎖)
//
// 結構:
//
//	slots: 帳戶 ID -> accountSlot，建立後不再增減，查詢不需要全域鎖
//	now: 時間來源
type MutexLedger struct {
	slots map[int64]*accountSlot
	now   func() time.Time
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	registry: 帳戶表，每個帳戶建立一個帳本
//	opts: WithWALDir / WithClock
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(registry *domain.AccountRegistry, opts ...Option) (*MutexLedger, error) {
	o := newOptions(opts)
	m := &MutexLedger{
		slots: make(map[int64]*accountSlot, registry.Len()),
		now:   o.now,
	}
	for _, id := range registry.IDs() {
		limit, _ := registry.LimitFor(id)
		ledger, w, err := openAccount(o.walDir, id, limit)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.slots[id] = &accountSlot{ledger: ledger, wal: w}
	}
	return m, nil
}

// WithAccount 在帳戶的獨占區段內執行 fn
// 帳戶不存在時回傳 false，fn 不會被呼叫
func WithAccount[R any](m *MutexLedger, accountID int64, fn func(*domain.AccountLedger) R) (R, bool) {
	return withSlot(m, accountID, func(s *accountSlot) R {
		return fn(s.ledger)
	})
}

func withSlot[R any](m *MutexLedger, accountID int64, fn func(*accountSlot) R) (R, bool) {
	slot, ok := m.slots[accountID]
	if !ok {
		var zero R
		return zero, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return fn(slot), true
}

type applyResult struct {
	snap domain.Snapshot
	err  error
}

// Apply 處理交易請求 (Level 1: 每帳戶 Mutex)
//
// 鎖內依序: 額度檢查 -> 寫 WAL 並 fsync -> 更新記憶體
func (m *MutexLedger) Apply(ctx context.Context, accountID int64, req domain.TransactionRequest) (domain.Snapshot, error) {
	res, ok := withSlot(m, accountID, func(s *accountSlot) applyResult {
		snap, err := s.ledger.TryApply(req, m.now(), persistTo(s.wal))
		return applyResult{snap: snap, err: err}
	})
	if !ok {
		return domain.Snapshot{}, domain.ErrAccountNotFound
	}
	return res.snap, res.err
}

// Snapshot 取得帳戶目前狀態
func (m *MutexLedger) Snapshot(ctx context.Context, accountID int64) (domain.Snapshot, error) {
	snap, ok := WithAccount(m, accountID, func(l *domain.AccountLedger) domain.Snapshot {
		return l.Snapshot(m.now())
	})
	if !ok {
		return domain.Snapshot{}, domain.ErrAccountNotFound
	}
	return snap, nil
}

// Close 關閉所有帳戶的 WAL
func (m *MutexLedger) Close() error {
	wals := make([]*wal.WAL, 0, len(m.slots))
	for _, s := range m.slots {
		s.mu.Lock()
		wals = append(wals, s.wal)
		s.mu.Unlock()
	}
	return closeAll(wals)
}

var _ usecase.LedgerStore = (*MutexLedger)(nil)
