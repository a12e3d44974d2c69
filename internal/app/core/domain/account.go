package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType 帳戶類型
type AccountType string

const (
	AccountTypeSaving  AccountType = "SAVING"
	AccountTypeCurrent AccountType = "CURRENT"
)

// Valid 是否為支援的帳戶類型
func (t AccountType) Valid() bool {
	return t == AccountTypeSaving || t == AccountTypeCurrent
}

// Account 銀行帳戶
//
// 結構:
//
//	PINHash: bcrypt 雜湊後的 PIN，不對外輸出
//	Balance: 餘額，只能透過 Deposit/Withdraw/Transfer 變更
type Account struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	PINHash    string          `json:"-"`
	Balance    decimal.Decimal `json:"balance"`
	Type       AccountType     `json:"type"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Deposit 存款，存入後餘額不得超過 MaxAmount
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountMustBePositive
	}

	balance := a.Balance.Add(amount)
	if balance.GreaterThan(MaxAmount) {
		return NewValidationError("amount", "would exceed the maximum balance")
	}
	a.Balance = balance
	return nil
}

// Withdraw 提款
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountMustBePositive
	}

	if a.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	a.Balance = a.Balance.Sub(amount)
	return nil
}
