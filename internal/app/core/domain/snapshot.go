package domain

import "time"

// Snapshot 某一時間點的帳戶狀態 (餘額與歷史來自同一版本)
type Snapshot struct {
	Balance int64
	Limit   int64
	AsOf    time.Time
	// RecentHistory: 最新在前，最多 HistorySize 筆，不會是 nil
	RecentHistory []TransactionRecord
}

// ClientView 交易成功後回給呼叫端的資料
type ClientView struct {
	ID      int64
	Limit   int64
	Balance int64
}

// BalanceView 對帳單的餘額區段
type BalanceView struct {
	Total int64
	Limit int64
	AsOf  time.Time
}

// ExtractView 對帳單
type ExtractView struct {
	Balance       BalanceView
	RecentHistory []TransactionRecord
}

// ToClientView 轉換成交易回應
func (s Snapshot) ToClientView(accountID int64) ClientView {
	return ClientView{
		ID:      accountID,
		Limit:   s.Limit,
		Balance: s.Balance,
	}
}

// ToExtractView 轉換成對帳單
func (s Snapshot) ToExtractView() ExtractView {
	history := s.RecentHistory
	if history == nil {
		history = []TransactionRecord{}
	}
	return ExtractView{
		Balance: BalanceView{
			Total: s.Balance,
			Limit: s.Limit,
			AsOf:  s.AsOf,
		},
		RecentHistory: history,
	}
}
