package grpc

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// Client LedgerService 的型別化客戶端
//
// 錯誤會還原成 domain 的 sentinel，呼叫端可用 errors.Is / domain.KindOf 判斷。
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*fields, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, fromStatus(err)
	}
	return newFields(out), nil
}

// CreateAccountWithCustomer 建立客戶與帳戶
func (c *Client) CreateAccountWithCustomer(ctx context.Context, customer usecase.CustomerInput, account usecase.AccountInput) (*domain.Customer, *domain.Account, error) {
	in := object(map[string]*structpb.Value{
		"customer": structpb.NewStructValue(object(map[string]*structpb.Value{
			"name":    structpb.NewStringValue(customer.Name),
			"email":   structpb.NewStringValue(customer.Email),
			"phone":   structpb.NewStringValue(customer.Phone),
			"address": structpb.NewStringValue(customer.Address),
		})),
		"account": structpb.NewStructValue(object(map[string]*structpb.Value{
			"pin":  structpb.NewStringValue(account.PIN),
			"type": structpb.NewStringValue(account.Type),
		})),
	})
	out, err := c.invoke(ctx, MethodCreateAccountWithCustomer, in)
	if err != nil {
		return nil, nil, err
	}
	createdCustomer := decodeCustomer(out.nested("customer"))
	createdAccount := decodeAccount(out.nested("account"))
	return createdCustomer, createdAccount, out.err()
}

// GetAccount 查詢帳戶
func (c *Client) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	out, err := c.invoke(ctx, MethodGetAccount, object(map[string]*structpb.Value{
		"id": idValue(accountID),
	}))
	if err != nil {
		return nil, err
	}
	account := decodeAccount(out)
	return account, out.err()
}

// GetCustomerByPhone 以電話查詢客戶
func (c *Client) GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	out, err := c.invoke(ctx, MethodGetCustomerByPhone, object(map[string]*structpb.Value{
		"phone": structpb.NewStringValue(phone),
	}))
	if err != nil {
		return nil, err
	}
	customer := decodeCustomer(out)
	return customer, out.err()
}

// GetTransactions 列出帳戶交易紀錄
func (c *Client) GetTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	out, err := c.invoke(ctx, MethodGetTransactions, object(map[string]*structpb.Value{
		"account_id": idValue(accountID),
	}))
	if err != nil {
		return nil, err
	}
	txs := decodeTransactions(out.list("transactions"))
	return txs, out.err()
}

// Deposit 存款，回傳新餘額
func (c *Client) Deposit(ctx context.Context, accountID int64, amount, pin string, ref uuid.UUID) (decimal.Decimal, error) {
	return c.balanceCall(ctx, MethodDeposit, accountID, amount, pin, ref)
}

// Withdraw 提款，回傳新餘額
func (c *Client) Withdraw(ctx context.Context, accountID int64, amount, pin string, ref uuid.UUID) (decimal.Decimal, error) {
	return c.balanceCall(ctx, MethodWithdraw, accountID, amount, pin, ref)
}

func (c *Client) balanceCall(ctx context.Context, method string, accountID int64, amount, pin string, ref uuid.UUID) (decimal.Decimal, error) {
	out, err := c.invoke(ctx, method, object(map[string]*structpb.Value{
		"account_id": idValue(accountID),
		"amount":     structpb.NewStringValue(amount),
		"pin":        structpb.NewStringValue(pin),
		"ref_id":     referenceValue(ref),
	}))
	if err != nil {
		return decimal.Zero, err
	}
	balance := out.decimal("new_balance")
	return balance, out.err()
}

// Transfer 轉帳，回傳轉出與轉入帳戶的新餘額
func (c *Client) Transfer(ctx context.Context, senderID, receiverID int64, amount, pin string, ref uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	out, err := c.invoke(ctx, MethodTransfer, object(map[string]*structpb.Value{
		"sender_account":   idValue(senderID),
		"receiver_account": idValue(receiverID),
		"amount":           structpb.NewStringValue(amount),
		"pin":              structpb.NewStringValue(pin),
		"ref_id":           referenceValue(ref),
	}))
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	sender := out.decimal("sender_new_balance")
	receiver := out.decimal("receiver_new_balance")
	return sender, receiver, out.err()
}
