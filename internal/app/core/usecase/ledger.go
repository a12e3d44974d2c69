package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// ApplyFunc 在帳戶鎖定期間執行的狀態轉換
//
// accounts 為已載入帳戶的副本 (以 ID 為 key)，直接修改 Balance 即可；
// 回傳要新增的交易紀錄。回傳 error 時整筆異動不會寫入。
type ApplyFunc func(accounts map[int64]*domain.Account) ([]domain.Transaction, error)

// Update 一次原子異動的描述
type Update struct {
	// AccountIDs: 涉及的帳號 (一或兩個)，Store 會依遞增順序鎖定
	AccountIDs []int64
	// Reference: 冪等鍵，uuid.Nil 代表不檢查
	Reference uuid.UUID
	Apply     ApplyFunc
}

// Ledger 是帳務系統的介面
type Ledger interface {
	// GetAccount 取得帳戶目前狀態
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	// AtomicUpdate 鎖定帳戶、執行 Apply，並將餘額與交易紀錄一併寫入 (全有或全無)
	// replayed 為 true 代表 Reference 已處理過，回傳的是先前寫入的交易紀錄
	AtomicUpdate(ctx context.Context, update Update) (txs []domain.Transaction, replayed bool, err error)
	// ListTransactions 依建立順序列出帳戶交易紀錄
	ListTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error)
}

// Directory 客戶與帳戶的建立及查詢
type Directory interface {
	CreateCustomer(ctx context.Context, customer *domain.Customer) error
	CreateAccount(ctx context.Context, account *domain.Account) error
	// CreateCustomerWithAccount 在同一個原子單位內建立客戶與其帳戶
	CreateCustomerWithAccount(ctx context.Context, customer *domain.Customer, account *domain.Account) error
	GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error)
	FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error)
}

// Store 同時提供 Ledger 與 Directory 的儲存實作
type Store interface {
	Ledger
	Directory
}
