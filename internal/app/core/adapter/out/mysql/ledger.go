package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
)

// sqlAccount 對應資料庫的 accounts 表
// 餘額與最近歷史放在同一列，一次讀取就是一致的快照
type sqlAccount struct {
	ID          int64                      `gorm:"primaryKey;autoIncrement:false"`
	CreditLimit int64                      `gorm:"not null"`
	Balance     int64                      `gorm:"not null"`
	History     []domain.TransactionRecord `gorm:"type:json;serializer:json"` // 最新在前，最多 HistorySize 筆
	UpdatedAt   int64                      `gorm:"autoUpdateTime:milli"`      // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// toLedger 把資料列還原成帳本 (只在交易內短暫使用)
func (a *sqlAccount) toLedger() *domain.AccountLedger {
	return domain.RestoreAccountLedger(a.ID, a.CreditLimit, a.Balance, a.History)
}

// historyAfter 新紀錄放最前面，超過 HistorySize 的舊紀錄丟掉
func historyAfter(history []domain.TransactionRecord, rec domain.TransactionRecord) []domain.TransactionRecord {
	n := len(history) + 1
	if n > domain.HistorySize {
		n = domain.HistorySize
	}
	out := make([]domain.TransactionRecord, 0, n)
	out = append(out, rec)
	for _, h := range history {
		if len(out) == n {
			break
		}
		out = append(out, h)
	}
	return out
}

// MySQLLedger 以資料庫列鎖作為帳戶的獨占區段 (Level 0)
type MySQLLedger struct {
	client *mysql.Client
	now    func() time.Time
}

func NewMySQLLedger(client *mysql.Client) *MySQLLedger {
	return &MySQLLedger{
		client: client,
		now:    time.Now,
	}
}

// EnsureAccounts 建表並寫入帳戶表中的帳戶
//
// 已存在的帳戶只更新額度，餘額與歷史保持不變
//
// 參數:
//
//	ctx: 上下文
//	registry: 帳戶表
//
// 回傳:
//
//	error: 建表或寫入失敗
func (ledger *MySQLLedger) EnsureAccounts(ctx context.Context, registry *domain.AccountRegistry) error {
	db := ledger.client.DB().WithContext(ctx)
	if err := db.AutoMigrate(&sqlAccount{}); err != nil {
		return fmt.Errorf("migrate accounts: %w", err)
	}
	for _, id := range registry.IDs() {
		limit, _ := registry.LimitFor(id)
		row := sqlAccount{ID: id, CreditLimit: limit, History: []domain.TransactionRecord{}}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"credit_limit"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("seed account %d: %w", id, err)
		}
	}
	return nil
}

// Apply 處理交易請求
//
// 資料庫交易內依序: SELECT ... FOR UPDATE 鎖住帳戶列 -> 額度檢查 -> 更新同一列 -> Commit
// Commit 成功才算交易成功
func (ledger *MySQLLedger) Apply(ctx context.Context, accountID int64, req domain.TransactionRequest) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 取得帳戶列鎖 (悲觀鎖)
		var row sqlAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", accountID).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAccountNotFound
			}
			return fmt.Errorf("%w: lock account %d: %v", domain.ErrStorageFailure, accountID, err)
		}

		var applyErr error
		snap, applyErr = row.toLedger().TryApply(req, ledger.now(), func(rec domain.TransactionRecord, newBalance int64) error {
			row.Balance = newBalance
			row.History = historyAfter(row.History, rec)
			return tx.Save(&row).Error
		})
		return applyErr
	})
	if err != nil {
		return domain.Snapshot{}, classify(err)
	}
	return snap, nil
}

// Snapshot 取得帳戶目前狀態 (單列讀取，不需要鎖)
func (ledger *MySQLLedger) Snapshot(ctx context.Context, accountID int64) (domain.Snapshot, error) {
	var row sqlAccount
	err := ledger.client.DB().WithContext(ctx).Where("id = ?", accountID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Snapshot{}, domain.ErrAccountNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("%w: read account %d: %v", domain.ErrStorageFailure, accountID, err)
	}
	return row.toLedger().Snapshot(ledger.now()), nil
}

// classify 業務錯誤原樣回傳，其他 (如 Commit 失敗) 一律視為儲存失敗
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrInsufficientLimit),
		errors.Is(err, domain.ErrMalformedRequest),
		errors.Is(err, domain.ErrStorageFailure):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
}

var _ usecase.LedgerStore = (*MySQLLedger)(nil)
