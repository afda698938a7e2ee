package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// HistorySize 每個帳戶保留的最近交易筆數
const HistorySize = 10

// TransactionKind 交易類型
// 直接使用對外的單字元代碼，省去轉換
type TransactionKind string

const (
	// 入帳
	TransactionKindCredit TransactionKind = "c"
	// 扣帳
	TransactionKindDebit TransactionKind = "d"
)

// Valid 是否為已知的交易類型
func (k TransactionKind) Valid() bool {
	return k == TransactionKindCredit || k == TransactionKindDebit
}

// signed 回傳對餘額的影響量
func (k TransactionKind) signed(value int64) int64 {
	if k == TransactionKindDebit {
		return -value
	}
	return value
}

// TransactionRequest 呼叫端送進來的交易請求 (尚未被帳本接受)
type TransactionRequest struct {
	Value       int64           `validate:"gt=0"`
	Kind        TransactionKind `validate:"oneof=c d"`
	Description string          `validate:"min=1,max=10"`
}

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate 檢查請求格式，錯誤一律包成 ErrMalformedRequest
//
// 描述長度以字元 (rune) 計算，不是 byte
func (r TransactionRequest) Validate() error {
	if err := requestValidator.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %s", ErrMalformedRequest, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return nil
}

// TransactionRecord 已被帳本接受的交易
// 只有通過額度檢查的交易才會建立此結構
type TransactionRecord struct {
	// ID: 帳本分配的交易識別 (WAL、事件使用)
	ID uuid.UUID `json:"id"`
	// Sequence: 帳戶內的提交順序，從 1 開始連續遞增
	Sequence uint64 `json:"sequence"`
	// Value: 金額 (最小貨幣單位)
	Value int64 `json:"value"`
	// Kind: c / d
	Kind TransactionKind `json:"kind"`
	// Description: 1~10 字元
	Description string `json:"description"`
	// OccurredAt: 帳本接受交易的時間
	OccurredAt time.Time `json:"occurred_at"`
}
