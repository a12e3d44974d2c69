package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// 金額精度：小數點後 4 位；整數部分最多 16 位，與 decimal(20,4) 欄位一致
const (
	CurrencyScale    = 4
	MaxIntegerDigits = 16
	maxAmountLiteral = "9999999999999999.9999"
)

// MaxAmount 單筆金額與帳戶餘額的上限
var MaxAmount = decimal.RequireFromString(maxAmountLiteral)

// ParseAmount 解析呼叫端傳入的金額字串
// 空值、非數字、非正數、超過 MaxAmount 或超過 CurrencyScale 位小數都回傳 ValidationError
//
// 位數檢查只看係數長度與指數，不做 rescale，極端指數 (如 1e2000000000) 不會配置巨大的整數。
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, NewValidationError(field, "is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, NewValidationError(field, "must be a number")
	}
	if !amount.IsPositive() {
		return decimal.Zero, NewValidationError(field, ErrAmountMustBePositive.Error())
	}

	digits, exp := amount.NumDigits(), int(amount.Exponent())
	if digits+exp > MaxIntegerDigits {
		return decimal.Zero, NewValidationError(field, "must not exceed "+maxAmountLiteral)
	}
	if exp < -CurrencyScale {
		// 係數必須能被 10^(-exp-4) 整除；需要去掉的位數不少於係數位數時必定不行
		if -exp-CurrencyScale >= digits || !amount.Equal(amount.Round(CurrencyScale)) {
			return decimal.Zero, NewValidationError(field, "must have at most 4 decimal places")
		}
	}
	if amount.GreaterThan(MaxAmount) {
		return decimal.Zero, NewValidationError(field, "must not exceed "+maxAmountLiteral)
	}
	return amount, nil
}
