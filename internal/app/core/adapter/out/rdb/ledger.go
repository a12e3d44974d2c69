package rdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
)

// SQLLedger 以關聯式資料庫 (GORM) 實作的帳本 (Level 0)
//
// 原子性由資料庫交易保證；涉及的帳戶以 SELECT ... FOR UPDATE 依 ID 遞增順序鎖定。
type SQLLedger struct {
	client *database.Client
}

func NewSQLLedger(client *database.Client) *SQLLedger {
	return &SQLLedger{
		client: client,
	}
}

// Migrate 建立或更新 customers / accounts / transactions / transaction_references
func (ledger *SQLLedger) Migrate(ctx context.Context) error {
	err := ledger.client.DB().WithContext(ctx).AutoMigrate(&sqlCustomer{}, &sqlAccount{}, &sqlTransaction{}, &sqlReference{})
	return domain.NewStoreError("migrate", err)
}

// GetAccount 取得帳戶
func (ledger *SQLLedger) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	var row sqlAccount
	err := ledger.client.DB().WithContext(ctx).Where("id = ?", accountID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, domain.NewStoreError("get account", err)
	}
	return row.toDomain(), nil
}

// AtomicUpdate 在單一資料庫交易內鎖定帳戶、執行狀態轉換並寫入結果
func (ledger *SQLLedger) AtomicUpdate(ctx context.Context, update usecase.Update) ([]domain.Transaction, bool, error) {
	// 取得鎖定帳號 以及lockID 悲觀鎖
	lockIDs := domain.GetLockIDs(update.AccountIDs...)
	if len(lockIDs) == 0 {
		return nil, false, domain.NewValidationError("account_ids", "is required")
	}

	var (
		result   []domain.Transaction
		replayed bool
		applyErr error
	)
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []sqlAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", lockIDs).
			Order("id").
			Find(&rows).Error; err != nil {
			return domain.NewStoreError("lock accounts", err)
		}
		// 安全檢查：確保涉及的帳號都存在
		if len(rows) != len(lockIDs) {
			return domain.ErrAccountNotFound
		}

		// 鎖定後才檢查冪等鍵，同一組帳戶的重送必定看得到先前的結果
		if update.Reference != uuid.Nil {
			var prior []sqlTransaction
			if err := tx.Where("reference = ?", update.Reference.String()).
				Order("id").
				Find(&prior).Error; err != nil {
				return domain.NewStoreError("select transaction", err)
			}
			if len(prior) > 0 {
				result = toDomainTransactions(prior)
				replayed = true
				return nil
			}
			// 帳戶鎖擋不住用在其他帳戶上的同一個鍵，改由 transaction_references 主鍵擋下
			if err := claimReference(tx, update.Reference); err != nil {
				if errors.Is(err, domain.ErrValidation) {
					applyErr = err
				}
				return err
			}
		}

		accounts := make(map[int64]*domain.Account, len(rows))
		for i := range rows {
			accounts[rows[i].ID] = rows[i].toDomain()
		}
		txs, err := update.Apply(accounts)
		if err != nil {
			applyErr = err
			return err
		}

		// 更新資料庫
		for i := range rows {
			balance := accounts[rows[i].ID].Balance
			if balance.Equal(rows[i].Balance) {
				continue
			}
			if err := tx.Model(&sqlAccount{}).
				Where("id = ?", rows[i].ID).
				Update("balance", balance).Error; err != nil {
				return domain.NewStoreError("update balance", err)
			}
		}

		// 建立交易紀錄
		if len(txs) == 0 {
			result = []domain.Transaction{}
			return nil
		}
		newRows := make([]sqlTransaction, 0, len(txs))
		for i := range txs {
			if _, ok := accounts[txs[i].AccountID]; !ok {
				applyErr = fmt.Errorf("transaction for unlocked account %d", txs[i].AccountID)
				return applyErr
			}
			newRows = append(newRows, fromDomainTransaction(&txs[i], update.Reference))
		}
		if err := tx.Create(&newRows).Error; err != nil {
			return domain.NewStoreError("insert transactions", err)
		}
		result = toDomainTransactions(newRows)
		return nil
	})
	if applyErr != nil {
		return nil, false, applyErr
	}
	if err != nil {
		var storeErr *domain.StoreError
		if errors.Is(err, domain.ErrAccountNotFound) || errors.As(err, &storeErr) {
			return nil, false, err
		}
		return nil, false, domain.NewStoreError("commit", err)
	}
	return result, replayed, nil
}

// ListTransactions 依建立順序列出帳戶交易紀錄
func (ledger *SQLLedger) ListTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	var rows []sqlTransaction
	err := ledger.client.DB().WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewStoreError("list transactions", err)
	}
	return toDomainTransactions(rows), nil
}

// CreateCustomer 建立客戶
func (ledger *SQLLedger) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	row := fromDomainCustomer(customer)
	if err := ledger.client.DB().WithContext(ctx).Create(&row).Error; err != nil {
		return domain.NewStoreError("create customer", err)
	}
	*customer = *row.toDomain()
	return nil
}

// CreateAccount 建立帳戶，客戶必須已存在
func (ledger *SQLLedger) CreateAccount(ctx context.Context, account *domain.Account) error {
	var created sqlAccount
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner sqlCustomer
		if err := tx.Select("id").Where("id = ?", account.CustomerID).First(&owner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCustomerNotFound
			}
			return domain.NewStoreError("get customer", err)
		}
		created = fromDomainAccount(account)
		if err := tx.Create(&created).Error; err != nil {
			return domain.NewStoreError("create account", err)
		}
		return nil
	})
	if err != nil {
		return wrapTxError("create account", err)
	}
	*account = *created.toDomain()
	return nil
}

// CreateCustomerWithAccount 在同一個資料庫交易內建立客戶與帳戶
func (ledger *SQLLedger) CreateCustomerWithAccount(ctx context.Context, customer *domain.Customer, account *domain.Account) error {
	var (
		customerRow sqlCustomer
		accountRow  sqlAccount
	)
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customerRow = fromDomainCustomer(customer)
		if err := tx.Create(&customerRow).Error; err != nil {
			return domain.NewStoreError("create customer", err)
		}
		accountRow = fromDomainAccount(account)
		accountRow.CustomerID = customerRow.ID
		if err := tx.Create(&accountRow).Error; err != nil {
			return domain.NewStoreError("create account", err)
		}
		return nil
	})
	if err != nil {
		return wrapTxError("create account with customer", err)
	}
	*customer = *customerRow.toDomain()
	*account = *accountRow.toDomain()
	return nil
}

// GetCustomer 取得客戶
func (ledger *SQLLedger) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	var row sqlCustomer
	err := ledger.client.DB().WithContext(ctx).Where("id = ?", customerID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, domain.NewStoreError("get customer", err)
	}
	return row.toDomain(), nil
}

// FindCustomerByPhone 不分大小寫比對電話，多筆時回傳 ID 最小者
func (ledger *SQLLedger) FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	var row sqlCustomer
	err := ledger.client.DB().WithContext(ctx).
		Where("LOWER(phone) = ?", domain.NormalizePhone(phone)).
		Order("id").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, domain.NewStoreError("find customer by phone", err)
	}
	return row.toDomain(), nil
}

// claimReference 在交易內寫入冪等鍵；鍵已存在回傳 ValidationError
//
// 並發的另一筆交易若已寫入同一個鍵，INSERT 會等待對方提交後回傳 ErrDuplicatedKey。
func claimReference(tx *gorm.DB, ref uuid.UUID) error {
	key := ref.String()
	var used int64
	if err := tx.Model(&sqlReference{}).Where("reference = ?", key).Count(&used).Error; err != nil {
		return domain.NewStoreError("select reference", err)
	}
	if used > 0 {
		return errReferenceInUse()
	}
	if err := tx.Create(&sqlReference{Reference: key}).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errReferenceInUse()
		}
		return domain.NewStoreError("insert reference", err)
	}
	return nil
}

func errReferenceInUse() error {
	return domain.NewValidationError("reference", "already used by a different operation")
}

// wrapTxError 資料庫交易本身 (begin/commit) 的錯誤包成 StoreError，業務錯誤原樣回傳
func wrapTxError(op string, err error) error {
	var storeErr *domain.StoreError
	if errors.Is(err, domain.ErrNotFound) || errors.As(err, &storeErr) {
		return err
	}
	return domain.NewStoreError(op, err)
}

var _ usecase.Store = (*SQLLedger)(nil)
