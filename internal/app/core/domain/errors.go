package domain

import "errors"

var (
	// ErrMalformedRequest 請求格式不符 (金額、類型或描述長度錯誤)，不會進入帳本
	ErrMalformedRequest = errors.New("malformed request")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientLimit 交易後餘額會低於 -limit
	ErrInsufficientLimit = errors.New("insufficient limit")

	// ErrStorageFailure 持久化寫入失敗，交易視為未發生
	ErrStorageFailure = errors.New("storage failure")

	// ErrInvalidRegistry 帳戶設定不合法 (重複 ID、負額度等)
	ErrInvalidRegistry = errors.New("invalid account registry")
)
