package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型
type TransactionType string

const (
	// 存款
	TransactionTypeDeposit TransactionType = "DEPOSIT"
	// 提款
	TransactionTypeWithdraw TransactionType = "WITHDRAW"
	// 轉入
	TransactionTypeTransferIn TransactionType = "TRANSFER_IN"
	// 轉出
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
)

// Credit 是否為入帳類型 (餘額增加)
func (t TransactionType) Credit() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeTransferIn
}

// Transaction 單一帳戶的餘額異動紀錄，建立後不可修改 (append-only)
type Transaction struct {
	// ID: 由 Store 分配，依建立順序遞增
	ID        int64 `json:"id"`
	AccountID int64 `json:"account_id"`
	// InitialBalance, FinalBalance: 交易前後的餘額快照
	InitialBalance decimal.Decimal `json:"initial_balance"`
	FinalBalance   decimal.Decimal `json:"final_balance"`
	Type           TransactionType `json:"type"`
	// Reference: 呼叫端提供的冪等鍵 (可為 uuid.Nil)
	Reference uuid.UUID `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTransaction 依帳戶異動前後餘額建立交易紀錄
func NewTransaction(accountID int64, txType TransactionType, initial, final decimal.Decimal, ref uuid.UUID) Transaction {
	return Transaction{
		AccountID:      accountID,
		InitialBalance: initial,
		FinalBalance:   final,
		Type:           txType,
		Reference:      ref,
	}
}

// Amount 回傳帶正負號的異動金額 (final - initial)
func (t *Transaction) Amount() decimal.Decimal {
	return t.FinalBalance.Sub(t.InitialBalance)
}

// GetLockIDs 回傳需要鎖定的帳號 ID，並確保順序以避免死鎖
// 重複的 ID 只會出現一次
func GetLockIDs(accountIDs ...int64) (ids []int64) {
	// 轉帳最多兩個帳號，直接插入排序即可
	ids = make([]int64, 0, len(accountIDs))
	for _, id := range accountIDs {
		pos := len(ids)
		dup := false
		for i, existing := range ids {
			if existing == id {
				dup = true
				break
			}
			if id < existing {
				pos = i
				break
			}
		}
		if dup {
			continue
		}
		ids = append(ids, 0)
		copy(ids[pos+1:], ids[pos:])
		ids[pos] = id
	}
	return ids
}
