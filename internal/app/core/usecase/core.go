package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層 (對外唯一入口)
type CoreUseCase struct {
	registry  *domain.AccountRegistry
	store     LedgerStore
	publisher EventPublisher
	logger    *slog.Logger
}

// Option 設定 CoreUseCase 的選項
type Option func(*CoreUseCase)

// WithPublisher 交易成功後發送事件
func WithPublisher(p EventPublisher) Option {
	return func(c *CoreUseCase) {
		c.publisher = p
	}
}

// WithLogger 指定 logger
func WithLogger(l *slog.Logger) Option {
	return func(c *CoreUseCase) {
		c.logger = l
	}
}

func NewCoreUseCase(registry *domain.AccountRegistry, store LedgerStore, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		registry: registry,
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitTransaction 處理交易
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//	req: 交易請求
//
// 回傳:
//
//	domain.ClientView: 交易後的帳戶資訊
//	error: ErrMalformedRequest / ErrAccountNotFound / ErrInsufficientLimit / ErrStorageFailure
func (c *CoreUseCase) SubmitTransaction(ctx context.Context, accountID int64, req domain.TransactionRequest) (domain.ClientView, error) {
	// 1. 格式檢查，不碰帳本，也不需要帳戶存在
	if err := req.Validate(); err != nil {
		return domain.ClientView{}, err
	}

	// 2. 帳戶檢查
	if _, ok := c.registry.LimitFor(accountID); !ok {
		return domain.ClientView{}, domain.ErrAccountNotFound
	}

	// 3. 交給 store 在獨占區段內處理
	snap, err := c.store.Apply(ctx, accountID, req)
	if err != nil {
		if errors.Is(err, domain.ErrStorageFailure) {
			c.logger.Error("transaction not persisted",
				slog.Int64("account_id", accountID),
				slog.String("error", err.Error()))
		}
		return domain.ClientView{}, err
	}

	c.publish(ctx, accountID, snap)
	return snap.ToClientView(accountID), nil
}

// GetExtract 取得對帳單
func (c *CoreUseCase) GetExtract(ctx context.Context, accountID int64) (domain.ExtractView, error) {
	if _, ok := c.registry.LimitFor(accountID); !ok {
		return domain.ExtractView{}, domain.ErrAccountNotFound
	}
	snap, err := c.store.Snapshot(ctx, accountID)
	if err != nil {
		return domain.ExtractView{}, err
	}
	return snap.ToExtractView(), nil
}

// publish 發送事件 (Best Effort)，失敗只記 log，不影響已提交的交易
func (c *CoreUseCase) publish(ctx context.Context, accountID int64, snap domain.Snapshot) {
	if c.publisher == nil {
		return
	}
	event, ok := domain.NewTransactionCompleted(accountID, snap)
	if !ok {
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish transaction event",
			slog.Int64("account_id", accountID),
			slog.String("transaction_id", event.TransactionID.String()),
			slog.String("error", err.Error()))
	}
}
