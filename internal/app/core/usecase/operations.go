package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// DepositRequest 存款請求
type DepositRequest struct {
	AccountID int64  `json:"accountId" validate:"required"`
	Amount    string `json:"amount"`
	PIN       string `json:"pin" validate:"required"`
	// Reference: 冪等鍵，重送同一個 Reference 不會重複入帳
	Reference uuid.UUID `json:"-"`
}

// WithdrawRequest 提款請求
type WithdrawRequest struct {
	AccountID int64     `json:"accountId" validate:"required"`
	Amount    string    `json:"amount"`
	PIN       string    `json:"pin" validate:"required"`
	Reference uuid.UUID `json:"-"`
}

// TransferRequest 轉帳請求，PIN 只驗證轉出帳戶
type TransferRequest struct {
	SenderID   int64     `json:"sender_account" validate:"required"`
	ReceiverID int64     `json:"receiver_account" validate:"required"`
	Amount     string    `json:"amount"`
	PIN        string    `json:"pin" validate:"required"`
	Reference  uuid.UUID `json:"-"`
}

// BalanceResult 存款/提款結果
type BalanceResult struct {
	Message     string             `json:"message"`
	NewBalance  decimal.Decimal    `json:"new_balance"`
	Transaction domain.Transaction `json:"transaction"`
	// Replayed: 同一 Reference 先前已處理，本次沒有任何異動
	Replayed bool `json:"replayed"`
}

// TransferResult 轉帳結果
type TransferResult struct {
	Message            string               `json:"message"`
	SenderNewBalance   decimal.Decimal      `json:"sender_new_balance"`
	ReceiverNewBalance decimal.Decimal      `json:"receiver_new_balance"`
	Transactions       []domain.Transaction `json:"transactions"`
	Replayed           bool                 `json:"replayed"`
}

// checkAmountRequest 檢查必填欄位與金額
func checkAmountRequest(req any, rawAmount string) (decimal.Decimal, error) {
	errs := fieldErrors{}
	errs.merge(validateStruct("", req))
	amount, err := domain.ParseAmount("amount", rawAmount)
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		errs.merge(verr.Fields)
	}
	return amount, errs.err()
}

// Deposit 存款
//
// 參數:
//
//	ctx: 上下文
//	req: 存款請求 (帳號、金額、PIN)
//
// 回傳:
//
//	*BalanceResult: 新餘額與交易紀錄
//	error: ValidationError / ErrAccountNotFound / ErrInvalidPIN / StoreError
func (c *CoreUseCase) Deposit(ctx context.Context, req DepositRequest) (*BalanceResult, error) {
	result, err := c.deposit(ctx, req)
	c.logOutcome(ctx, "deposit", err,
		slog.Int64("account_id", req.AccountID),
		slog.String("amount", req.Amount),
	)
	return result, err
}

func (c *CoreUseCase) deposit(ctx context.Context, req DepositRequest) (*BalanceResult, error) {
	amount, err := checkAmountRequest(req, req.Amount)
	if err != nil {
		return nil, err
	}
	if _, err := c.authorize(ctx, req.AccountID, req.PIN); err != nil {
		return nil, err
	}

	txs, replayed, err := c.store.AtomicUpdate(ctx, Update{
		AccountIDs: []int64{req.AccountID},
		Reference:  req.Reference,
		Apply: func(accounts map[int64]*domain.Account) ([]domain.Transaction, error) {
			account := accounts[req.AccountID]
			initial := account.Balance
			if err := account.Deposit(amount); err != nil {
				return nil, err
			}
			return []domain.Transaction{
				domain.NewTransaction(account.ID, domain.TransactionTypeDeposit, initial, account.Balance, req.Reference),
			}, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("deposit to account %d: %w", req.AccountID, err)
	}

	tx, err := pick(txs, req.AccountID, domain.TransactionTypeDeposit)
	if err != nil {
		return nil, err
	}
	return &BalanceResult{
		Message:     fmt.Sprintf("Deposited %s to account %d", tx.Amount().Abs(), req.AccountID),
		NewBalance:  tx.FinalBalance,
		Transaction: tx,
		Replayed:    replayed,
	}, nil
}

// Withdraw 提款，金額不得超過目前餘額
func (c *CoreUseCase) Withdraw(ctx context.Context, req WithdrawRequest) (*BalanceResult, error) {
	result, err := c.withdraw(ctx, req)
	c.logOutcome(ctx, "withdraw", err,
		slog.Int64("account_id", req.AccountID),
		slog.String("amount", req.Amount),
	)
	return result, err
}

func (c *CoreUseCase) withdraw(ctx context.Context, req WithdrawRequest) (*BalanceResult, error) {
	amount, err := checkAmountRequest(req, req.Amount)
	if err != nil {
		return nil, err
	}
	if _, err := c.authorize(ctx, req.AccountID, req.PIN); err != nil {
		return nil, err
	}

	txs, replayed, err := c.store.AtomicUpdate(ctx, Update{
		AccountIDs: []int64{req.AccountID},
		Reference:  req.Reference,
		Apply: func(accounts map[int64]*domain.Account) ([]domain.Transaction, error) {
			account := accounts[req.AccountID]
			initial := account.Balance
			if err := account.Withdraw(amount); err != nil {
				return nil, err
			}
			return []domain.Transaction{
				domain.NewTransaction(account.ID, domain.TransactionTypeWithdraw, initial, account.Balance, req.Reference),
			}, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("withdraw from account %d: %w", req.AccountID, err)
	}

	tx, err := pick(txs, req.AccountID, domain.TransactionTypeWithdraw)
	if err != nil {
		return nil, err
	}
	return &BalanceResult{
		Message:     fmt.Sprintf("Withdrew %s from account %d", tx.Amount().Abs(), req.AccountID),
		NewBalance:  tx.FinalBalance,
		Transaction: tx,
		Replayed:    replayed,
	}, nil
}

// Transfer 轉帳
//
// 兩個帳戶在同一次 AtomicUpdate 內依 ID 遞增順序鎖定，
// 轉出與轉入兩筆交易紀錄一起寫入。
func (c *CoreUseCase) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	result, err := c.transfer(ctx, req)
	c.logOutcome(ctx, "transfer", err,
		slog.Int64("sender_id", req.SenderID),
		slog.Int64("receiver_id", req.ReceiverID),
		slog.String("amount", req.Amount),
	)
	return result, err
}

func (c *CoreUseCase) transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	amount, err := checkAmountRequest(req, req.Amount)
	if err == nil && req.SenderID == req.ReceiverID {
		err = domain.NewValidationError("receiver_account", "must differ from sender_account")
	}
	if err != nil {
		return nil, err
	}
	if _, err := c.authorize(ctx, req.SenderID, req.PIN); err != nil {
		return nil, err
	}
	if _, err := c.store.GetAccount(ctx, req.ReceiverID); err != nil {
		return nil, err
	}

	txs, replayed, err := c.store.AtomicUpdate(ctx, Update{
		AccountIDs: []int64{req.SenderID, req.ReceiverID},
		Reference:  req.Reference,
		Apply: func(accounts map[int64]*domain.Account) ([]domain.Transaction, error) {
			sender := accounts[req.SenderID]
			receiver := accounts[req.ReceiverID]
			senderInitial, receiverInitial := sender.Balance, receiver.Balance
			if err := sender.Withdraw(amount); err != nil {
				return nil, err
			}
			if err := receiver.Deposit(amount); err != nil {
				return nil, err
			}
			return []domain.Transaction{
				domain.NewTransaction(sender.ID, domain.TransactionTypeTransferOut, senderInitial, sender.Balance, req.Reference),
				domain.NewTransaction(receiver.ID, domain.TransactionTypeTransferIn, receiverInitial, receiver.Balance, req.Reference),
			}, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("transfer from account %d to %d: %w", req.SenderID, req.ReceiverID, err)
	}

	out, err := pick(txs, req.SenderID, domain.TransactionTypeTransferOut)
	if err != nil {
		return nil, err
	}
	in, err := pick(txs, req.ReceiverID, domain.TransactionTypeTransferIn)
	if err != nil {
		return nil, err
	}
	return &TransferResult{
		Message: fmt.Sprintf("Transferred %s from account %d to account %d",
			out.Amount().Abs(), req.SenderID, req.ReceiverID),
		SenderNewBalance:   out.FinalBalance,
		ReceiverNewBalance: in.FinalBalance,
		Transactions:       []domain.Transaction{out, in},
		Replayed:           replayed,
	}, nil
}

// pick 從 AtomicUpdate 的結果找出指定帳戶與類型的交易
// 找不到代表 Reference 曾被其他操作使用
func pick(txs []domain.Transaction, accountID int64, txType domain.TransactionType) (domain.Transaction, error) {
	for _, tx := range txs {
		if tx.AccountID == accountID && tx.Type == txType {
			return tx, nil
		}
	}
	return domain.Transaction{}, domain.NewValidationError("reference", "already used by a different operation")
}
