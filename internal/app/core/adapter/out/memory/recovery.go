package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

// options 兩種 memory ledger 共用的設定
type options struct {
	walDir string
	now    func() time.Time
}

// Option 設定 memory ledger
type Option func(*options)

// WithWALDir 啟用 WAL，每個帳戶一個檔案 (空字串代表不持久化)
func WithWALDir(dir string) Option {
	return func(o *options) {
		o.walDir = dir
	}
}

// WithClock 替換時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// walPath 帳戶的 WAL 檔案路徑
func walPath(dir string, accountID int64) string {
	return filepath.Join(dir, fmt.Sprintf("account-%d.wal", accountID))
}

// openAccount 建立帳本並從 WAL 恢復狀態
//
// 參數:
//
//	dir: WAL 目錄，空字串代表不使用 WAL
//	accountID: 帳戶 ID
//	limit: 額度
//
// 回傳:
//
//	*domain.AccountLedger: 已恢復的帳本
//	*wal.WAL: 該帳戶的 WAL (未啟用時為 nil)
//	error: 開檔或恢復錯誤
func openAccount(dir string, accountID, limit int64) (*domain.AccountLedger, *wal.WAL, error) {
	ledger := domain.NewAccountLedger(accountID, limit)
	if dir == "" {
		return ledger, nil, nil
	}
	w, err := wal.NewWAL(walPath(dir, accountID))
	if err != nil {
		return nil, nil, fmt.Errorf("open wal for account %d: %w", accountID, err)
	}
	if err := recoverFromWAL(ledger, w); err != nil {
		w.Close()
		return nil, nil, fmt.Errorf("recover account %d: %w", accountID, err)
	}
	return ledger, w, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只有啟動時呼叫，無需 Lock (單執行緒)
func recoverFromWAL(ledger *domain.AccountLedger, w *wal.WAL) error {
	return w.ReadAll(func(jsonRaw []byte) error {
		var rec domain.TransactionRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		ledger.Replay(rec)
		return nil
	})
}

// persistTo 回傳寫入 WAL 的 PersistFunc (w 為 nil 時不持久化)
func persistTo(w *wal.WAL) domain.PersistFunc {
	if w == nil {
		return nil
	}
	return func(rec domain.TransactionRecord, _ int64) error {
		return w.Write(rec)
	}
}

// closeAll 關閉所有 WAL，回傳第一個錯誤
func closeAll(wals []*wal.WAL) error {
	var errs []error
	for _, w := range wals {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
