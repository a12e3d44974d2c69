package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrValidation 輸入缺漏或格式錯誤
	ErrValidation = errors.New("validation failed")

	// ErrAmountMustBePositive 金額必須為正數
	ErrAmountMustBePositive = errors.New("amount must be positive")

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotFound 所有「找不到」類錯誤的共同 sentinel
	ErrNotFound = errors.New("not found")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)

	// ErrCustomerNotFound 找不到客戶
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)

	// ErrInvalidPIN PIN 驗證失敗
	ErrInvalidPIN = errors.New("invalid pin")

	// ErrStore 底層儲存失敗
	ErrStore = errors.New("store failure")

	// ErrWALWriteFailed 寫入 WAL 失敗
	ErrWALWriteFailed = fmt.Errorf("wal write failed: %w", ErrStore)
)

// ValidationError 欄位層級的驗證錯誤，errors.Is(err, ErrValidation) 成立
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError 建立單一欄位的驗證錯誤
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError 包裝底層儲存錯誤，保留原始 cause
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError 包裝 err；nil 直接回傳 nil
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStore, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// Kind 錯誤分類，供 adapter 對應成傳輸層狀態碼
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInvalidCredential
	KindInsufficientFunds
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindStore:
		return "store"
	default:
		return "internal"
	}
}

// KindOf 將錯誤分類
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrAmountMustBePositive):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidPIN):
		return KindInvalidCredential
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientFunds
	case errors.Is(err, ErrStore):
		return KindStore
	default:
		return KindInternal
	}
}
