package domain

import (
	"fmt"
	"sort"
)

// Account 設定檔中的帳戶 (啟動後不可變)
type Account struct {
	ID    int64 `yaml:"id"`
	Limit int64 `yaml:"limit"`
}

// DefaultAccounts 未提供設定時使用的帳戶表
var DefaultAccounts = []Account{
	{ID: 1, Limit: 100000},
	{ID: 2, Limit: 80000},
	{ID: 3, Limit: 1000000},
	{ID: 4, Limit: 10000000},
	{ID: 5, Limit: 500000},
}

// AccountRegistry 帳戶 ID -> 額度 的唯讀對照表
//
// 建立後不再修改，多個 goroutine 可以不加鎖同時讀取
type AccountRegistry struct {
	limits map[int64]int64
	ids    []int64
}

// NewAccountRegistry 依設定建立帳戶表
//
// 參數:
//
//	accounts: 帳戶設定
//
// 回傳:
//
//	*AccountRegistry: 帳戶表
//	error: ID 重複、ID 非正數或額度為負時回傳 ErrInvalidRegistry
func NewAccountRegistry(accounts []Account) (*AccountRegistry, error) {
	r := &AccountRegistry{
		limits: make(map[int64]int64, len(accounts)),
		ids:    make([]int64, 0, len(accounts)),
	}
	for _, acc := range accounts {
		if acc.ID <= 0 {
			return nil, fmt.Errorf("%w: account id %d must be positive", ErrInvalidRegistry, acc.ID)
		}
		if acc.Limit < 0 {
			return nil, fmt.Errorf("%w: account %d has negative limit %d", ErrInvalidRegistry, acc.ID, acc.Limit)
		}
		if _, dup := r.limits[acc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate account id %d", ErrInvalidRegistry, acc.ID)
		}
		r.limits[acc.ID] = acc.Limit
		r.ids = append(r.ids, acc.ID)
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r, nil
}

// LimitFor 查詢帳戶額度，帳戶不存在時 ok 為 false
func (r *AccountRegistry) LimitFor(accountID int64) (limit int64, ok bool) {
	limit, ok = r.limits[accountID]
	return limit, ok
}

// IDs 回傳排序後的帳戶 ID (複本)
func (r *AccountRegistry) IDs() []int64 {
	out := make([]int64, len(r.ids))
	copy(out, r.ids)
	return out
}

// Len 帳戶數量
func (r *AccountRegistry) Len() int {
	return len(r.ids)
}
