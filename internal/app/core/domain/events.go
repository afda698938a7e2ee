package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionCompleted 交易完成事件 (提交後才發出)
//
// 事件在帳戶鎖外送出，同一帳戶的事件可能亂序抵達，消費端以 Sequence 排序
type TransactionCompleted struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	AccountID     int64           `json:"account_id"`
	Sequence      uint64          `json:"sequence"`
	Kind          TransactionKind `json:"kind"`
	Value         int64           `json:"value"`
	Description   string          `json:"description"`
	Balance       int64           `json:"balance"`
	Limit         int64           `json:"limit"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewTransactionCompleted 由交易後快照建立事件
// 快照的第一筆歷史就是剛被接受的交易
func NewTransactionCompleted(accountID int64, snap Snapshot) (TransactionCompleted, bool) {
	if len(snap.RecentHistory) == 0 {
		return TransactionCompleted{}, false
	}
	rec := snap.RecentHistory[0]
	return TransactionCompleted{
		TransactionID: rec.ID,
		AccountID:     accountID,
		Sequence:      rec.Sequence,
		Kind:          rec.Kind,
		Value:         rec.Value,
		Description:   rec.Description,
		Balance:       snap.Balance,
		Limit:         snap.Limit,
		OccurredAt:    rec.OccurredAt,
	}, true
}
