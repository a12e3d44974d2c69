package rdb

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// sqlCustomer 對應資料庫的 customers 表
type sqlCustomer struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"size:20;not null"`
	Email     string `gorm:"size:254;not null"`
	Phone     string `gorm:"size:10;not null;index"`
	Address   string `gorm:"size:20;not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	// 刪除客戶時一併刪除帳戶
	Accounts []sqlAccount `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
}

func (*sqlCustomer) TableName() string {
	return "customers"
}

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	CustomerID int64           `gorm:"not null;index"`
	PINHash    string          `gorm:"column:pin_hash;size:60;not null"`
	Balance    decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Type       string          `gorm:"size:10;not null"`
	Active     bool            `gorm:"not null;default:true"`
	CreatedAt  time.Time
	// 刪除帳戶時一併刪除交易紀錄
	Transactions []sqlTransaction `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID             int64           `gorm:"primaryKey;autoIncrement"`
	AccountID      int64           `gorm:"not null;index"`
	InitialBalance decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	FinalBalance   decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Type           string          `gorm:"size:20;not null"`
	// Reference: 冪等鍵 (uuid 字串)，轉帳的兩筆紀錄共用同一個值，因此不是 unique
	Reference string `gorm:"size:36;index"`
	CreatedAt time.Time
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// sqlReference 已被使用的冪等鍵，主鍵保證同一個鍵只會被一次異動寫入
type sqlReference struct {
	Reference string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
}

func (*sqlReference) TableName() string {
	return "transaction_references"
}

func fromDomainCustomer(c *domain.Customer) sqlCustomer {
	return sqlCustomer{
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
		Active:  c.Active,
	}
}

func (row *sqlCustomer) toDomain() *domain.Customer {
	return &domain.Customer{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Phone:     row.Phone,
		Address:   row.Address,
		Active:    row.Active,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func fromDomainAccount(a *domain.Account) sqlAccount {
	return sqlAccount{
		CustomerID: a.CustomerID,
		PINHash:    a.PINHash,
		Balance:    a.Balance,
		Type:       string(a.Type),
		Active:     a.Active,
	}
}

func (row *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:         row.ID,
		CustomerID: row.CustomerID,
		PINHash:    row.PINHash,
		Balance:    row.Balance,
		Type:       domain.AccountType(row.Type),
		Active:     row.Active,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

func fromDomainTransaction(tx *domain.Transaction, ref uuid.UUID) sqlTransaction {
	row := sqlTransaction{
		AccountID:      tx.AccountID,
		InitialBalance: tx.InitialBalance,
		FinalBalance:   tx.FinalBalance,
		Type:           string(tx.Type),
	}
	if ref != uuid.Nil {
		row.Reference = ref.String()
	}
	return row
}

func (row *sqlTransaction) toDomain() domain.Transaction {
	ref, err := uuid.Parse(row.Reference)
	if err != nil {
		ref = uuid.Nil
	}
	return domain.Transaction{
		ID:             row.ID,
		AccountID:      row.AccountID,
		InitialBalance: row.InitialBalance,
		FinalBalance:   row.FinalBalance,
		Type:           domain.TransactionType(row.Type),
		Reference:      ref,
		CreatedAt:      row.CreatedAt.UTC(),
	}
}

func toDomainTransactions(rows []sqlTransaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out
}
