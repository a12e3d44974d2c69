package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// CustomerInput 建立客戶的資料
type CustomerInput struct {
	Name    string `json:"name" validate:"required,max=20"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"required,max=10"`
	Address string `json:"address" validate:"required,max=20"`
}

// AccountInput 建立帳戶的資料，新帳戶餘額一律為 0
type AccountInput struct {
	PIN  string `json:"pin" validate:"required,len=4"`
	Type string `json:"type" validate:"required,oneof=SAVING CURRENT"`
}

func (in CustomerInput) normalized() CustomerInput {
	return CustomerInput{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
	}
}

func (in AccountInput) normalized() AccountInput {
	return AccountInput{
		PIN:  in.PIN,
		Type: strings.ToUpper(strings.TrimSpace(in.Type)),
	}
}

func newCustomer(in CustomerInput) *domain.Customer {
	return &domain.Customer{
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Address: in.Address,
		Active:  true,
	}
}

func (c *CoreUseCase) newAccount(customerID int64, in AccountInput) (*domain.Account, error) {
	hash, err := c.pins.HashPIN(in.PIN)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}
	return &domain.Account{
		CustomerID: customerID,
		PINHash:    hash,
		Balance:    decimal.Zero,
		Type:       domain.AccountType(in.Type),
		Active:     true,
	}, nil
}

// CreateCustomer 建立客戶
func (c *CoreUseCase) CreateCustomer(ctx context.Context, in CustomerInput) (*domain.Customer, error) {
	in = in.normalized()
	errs := fieldErrors{}
	errs.merge(validateStruct("", in))
	if err := errs.err(); err != nil {
		return nil, err
	}
	customer := newCustomer(in)
	err := c.store.CreateCustomer(ctx, customer)
	c.logOutcome(ctx, "create customer", err, slog.Int64("customer_id", customer.ID))
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return customer, nil
}

// CreateAccount 為既有客戶開立帳戶
func (c *CoreUseCase) CreateAccount(ctx context.Context, customerID int64, in AccountInput) (*domain.Account, error) {
	in = in.normalized()
	errs := fieldErrors{}
	errs.merge(validateStruct("", in))
	if customerID == 0 {
		errs.add("customer", "is required")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	account, err := c.newAccount(customerID, in)
	if err != nil {
		return nil, err
	}
	err = c.store.CreateAccount(ctx, account)
	c.logOutcome(ctx, "create account", err,
		slog.Int64("customer_id", customerID),
		slog.Int64("account_id", account.ID),
	)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// CreateAccountWithCustomer 建立新客戶並開立帳戶
//
// 兩份資料先全部驗證，再於同一個原子單位寫入；
// 帳戶建立失敗時不會留下孤立的客戶。
func (c *CoreUseCase) CreateAccountWithCustomer(ctx context.Context, customerIn CustomerInput, accountIn AccountInput) (*domain.Customer, *domain.Account, error) {
	customerIn = customerIn.normalized()
	accountIn = accountIn.normalized()

	errs := fieldErrors{}
	errs.merge(validateStruct("customer.", customerIn))
	errs.merge(validateStruct("account.", accountIn))
	if err := errs.err(); err != nil {
		return nil, nil, err
	}

	customer := newCustomer(customerIn)
	account, err := c.newAccount(0, accountIn)
	if err != nil {
		return nil, nil, err
	}
	err = c.store.CreateCustomerWithAccount(ctx, customer, account)
	c.logOutcome(ctx, "create account with customer", err,
		slog.Int64("customer_id", customer.ID),
		slog.Int64("account_id", account.ID),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create account with customer: %w", err)
	}
	return customer, account, nil
}

// GetAccount 查詢帳戶
func (c *CoreUseCase) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	if accountID == 0 {
		return nil, domain.NewValidationError("id", "is required")
	}
	return c.store.GetAccount(ctx, accountID)
}

// GetCustomer 查詢客戶
func (c *CoreUseCase) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	if customerID == 0 {
		return nil, domain.NewValidationError("id", "is required")
	}
	return c.store.GetCustomer(ctx, customerID)
}

// GetCustomerByPhone 以電話查詢客戶 (不分大小寫的完全比對)
func (c *CoreUseCase) GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, domain.NewValidationError("phone", "is required")
	}
	return c.store.FindCustomerByPhone(ctx, phone)
}

// GetTransactionsForAccount 依建立順序列出帳戶的交易紀錄
func (c *CoreUseCase) GetTransactionsForAccount(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	if accountID == 0 {
		return nil, domain.NewValidationError("accountId", "is required")
	}
	return c.store.ListTransactions(ctx, accountID)
}
