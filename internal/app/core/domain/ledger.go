package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// PersistFunc 在餘額變更前寫入持久層
// 回傳錯誤時帳本狀態保持不變
type PersistFunc func(rec TransactionRecord, newBalance int64) error

// AccountLedger 單一帳戶的可變狀態：餘額與最近交易
//
// 本身不加鎖，由持有它的 store 保證同一時間只有一個呼叫者
//
// 結構:
//
//	id: 帳戶 ID
//	limit: 額度 (餘額不得低於 -limit)
//	balance: 目前餘額
//	history: 最近交易，最新在前，最多 HistorySize 筆
//	seq: 最後一筆被接受交易的 Sequence
type AccountLedger struct {
	id      int64
	limit   int64
	balance int64
	history []TransactionRecord
	seq     uint64
}

// NewAccountLedger 建立餘額為 0、沒有歷史的帳本
func NewAccountLedger(id, limit int64) *AccountLedger {
	return &AccountLedger{
		id:      id,
		limit:   limit,
		history: make([]TransactionRecord, 0, HistorySize),
	}
}

// RestoreAccountLedger 由持久層資料還原帳本 (歷史需為最新在前)
func RestoreAccountLedger(id, limit, balance int64, history []TransactionRecord) *AccountLedger {
	if len(history) > HistorySize {
		history = history[:HistorySize]
	}
	h := make([]TransactionRecord, len(history), HistorySize)
	copy(h, history)
	var seq uint64
	if len(h) > 0 {
		seq = h[0].Sequence
	}
	return &AccountLedger{
		id:      id,
		limit:   limit,
		balance: balance,
		history: h,
		seq:     seq,
	}
}

func (l *AccountLedger) ID() int64 {
	return l.id
}

func (l *AccountLedger) Limit() int64 {
	return l.limit
}

func (l *AccountLedger) Balance() int64 {
	return l.balance
}

// TryApply 檢查額度並套用交易，檢查與變更在同一步完成
//
// 參數:
//
//	req: 已通過格式驗證的交易請求
//	now: 交易時間 (由帳本決定，不由呼叫端提供)
//	persist: 持久化函式，可為 nil
//
// 回傳:
//
//	Snapshot: 交易後的狀態
//	error: ErrInsufficientLimit / ErrStorageFailure / ErrMalformedRequest，失敗時狀態完全不變
func (l *AccountLedger) TryApply(req TransactionRequest, now time.Time, persist PersistFunc) (Snapshot, error) {
	if req.Value <= 0 || !req.Kind.Valid() {
		return Snapshot{}, fmt.Errorf("%w: value %d kind %q", ErrMalformedRequest, req.Value, req.Kind)
	}

	// 1. 計算交易後餘額
	candidate, ok := l.candidate(req.Kind, req.Value)
	if !ok {
		return Snapshot{}, ErrInsufficientLimit
	}

	// 2. 建立交易紀錄，時間不得早於上一筆
	occurredAt := now.UTC()
	if len(l.history) > 0 && occurredAt.Before(l.history[0].OccurredAt) {
		occurredAt = l.history[0].OccurredAt
	}
	rec := TransactionRecord{
		ID:          uuid.New(),
		Sequence:    l.seq + 1,
		Value:       req.Value,
		Kind:        req.Kind,
		Description: req.Description,
		OccurredAt:  occurredAt,
	}

	// 3. 先持久化，成功後才更新記憶體
	if persist != nil {
		if err := persist(rec, candidate); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
	}

	l.balance = candidate
	l.seq = rec.Sequence
	l.push(rec)
	return l.Snapshot(occurredAt), nil
}

// Replay 重放已接受過的交易 (只在啟動恢復時使用，不檢查額度)
// 沒有 Sequence 的舊紀錄依重放順序補上
func (l *AccountLedger) Replay(rec TransactionRecord) {
	if rec.Sequence == 0 {
		rec.Sequence = l.seq + 1
	}
	l.balance += rec.Kind.signed(rec.Value)
	l.seq = rec.Sequence
	l.push(rec)
}

// Snapshot 回傳目前狀態的複本
func (l *AccountLedger) Snapshot(now time.Time) Snapshot {
	history := make([]TransactionRecord, len(l.history))
	copy(history, l.history)
	return Snapshot{
		Balance:       l.balance,
		Limit:         l.limit,
		AsOf:          now.UTC(),
		RecentHistory: history,
	}
}

// candidate 計算交易後餘額，違反額度或溢位時 ok 為 false
func (l *AccountLedger) candidate(kind TransactionKind, value int64) (int64, bool) {
	if kind == TransactionKindCredit {
		if l.balance > math.MaxInt64-value {
			return 0, false
		}
		return l.balance + value, true
	}
	// balance - value >= -limit  <=>  value <= balance + limit
	headroom := int64(math.MaxInt64)
	if l.balance <= math.MaxInt64-l.limit {
		headroom = l.balance + l.limit
	}
	if value > headroom {
		return 0, false
	}
	return l.balance - value, true
}

// push 新交易放到最前面，超過 HistorySize 的最舊一筆丟棄
func (l *AccountLedger) push(rec TransactionRecord) {
	n := len(l.history) + 1
	if n > HistorySize {
		n = HistorySize
	}
	h := make([]TransactionRecord, n, HistorySize)
	h[0] = rec
	copy(h[1:], l.history)
	l.history = h
}
