package usecase

import (
	"context"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// LedgerStore 是帳本儲存的介面
//
// 同一帳戶的 Apply / Snapshot 必須序列化；不同帳戶之間互不阻塞
type LedgerStore interface {
	// Apply 在帳戶的獨占區段內檢查額度並套用交易
	Apply(ctx context.Context, accountID int64, req domain.TransactionRequest) (domain.Snapshot, error)
	// Snapshot 取得帳戶目前狀態 (餘額與歷史為同一版本)
	Snapshot(ctx context.Context, accountID int64) (domain.Snapshot, error)
}

// EventPublisher 交易完成事件的發送者
type EventPublisher interface {
	Publish(ctx context.Context, event domain.TransactionCompleted) error
}
