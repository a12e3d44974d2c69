package grpc

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// GrpcServer 將 gRPC 請求轉為 CoreUseCase 呼叫，本身不含業務邏輯
type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

// CreateAccountWithCustomer
//
//	請求: {"customer": {name, email, phone, address}, "account": {pin, type}}
//	回應: {"customer": {...}, "account": {...}}
func (s *GrpcServer) CreateAccountWithCustomer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	c, a := f.nested("customer"), f.nested("account")
	customerIn := usecase.CustomerInput{
		Name:    c.str("name"),
		Email:   c.str("email"),
		Phone:   c.str("phone"),
		Address: c.str("address"),
	}
	accountIn := usecase.AccountInput{
		PIN:  a.str("pin"),
		Type: a.str("type"),
	}
	if err := f.err(); err != nil {
		return nil, toStatus(err)
	}

	customer, account, err := s.core.CreateAccountWithCustomer(ctx, customerIn, accountIn)
	if err != nil {
		return nil, toStatus(err)
	}
	return object(map[string]*structpb.Value{
		"customer": structpb.NewStructValue(encodeCustomer(customer)),
		"account":  structpb.NewStructValue(encodeAccount(account)),
	}), nil
}

// GetAccount 請求: {"id": 1}
func (s *GrpcServer) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	id := f.id("id")
	if err := f.err(); err != nil {
		return nil, toStatus(err)
	}
	account, err := s.core.GetAccount(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeAccount(account), nil
}

// GetCustomerByPhone 請求: {"phone": "0912345678"}
func (s *GrpcServer) GetCustomerByPhone(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	phone := f.str("phone")
	if err := f.err(); err != nil {
		return nil, toStatus(err)
	}
	customer, err := s.core.GetCustomerByPhone(ctx, phone)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeCustomer(customer), nil
}

// GetTransactions 請求: {"account_id": 1}；回應: {"transactions": [...]}
func (s *GrpcServer) GetTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	accountID := f.id("account_id")
	if err := f.err(); err != nil {
		return nil, toStatus(err)
	}
	txs, err := s.core.GetTransactionsForAccount(ctx, accountID)
	if err != nil {
		return nil, toStatus(err)
	}
	return object(map[string]*structpb.Value{
		"transactions": encodeTransactions(txs),
	}), nil
}

// Deposit 請求: {"account_id", "amount", "pin", "ref_id"}
func (s *GrpcServer) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	in := usecase.DepositRequest{
		AccountID: f.id("account_id"),
		Amount:    f.str("amount"),
		PIN:       f.str("pin"),
		Reference: f.reference("ref_id"),
	}
	if err := f.err(); err != nil {
		return nil, toStatus(err)
	}
	result, err := s.core.Deposit(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeBalanceResult(result), nil
}

// Withdraw 請求: {"account_id", "amount", "pin", "ref_id"}
func (s *GrpcServer) Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	in := usecase.WithdrawRequest{
		AccountID: f.id("account_id"),
		Amount:    f.str("amount"),
		PIN:       f.str("pin"),
		Reference: f.reference("ref_id"),
	}
	if err := f.err(); err != nil {
		return nil, toStatus(err)
	}
	result, err := s.core.Withdraw(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeBalanceResult(result), nil
}

// Transfer 請求: {"sender_account", "receiver_account", "amount", "pin", "ref_id"}
func (s *GrpcServer) Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := newFields(req)
	in := usecase.TransferRequest{
		SenderID:   f.id("sender_account"),
		ReceiverID: f.id("receiver_account"),
		Amount:     f.str("amount"),
		PIN:        f.str("pin"),
		Reference:  f.reference("ref_id"),
	}
	if err := f.err(); err != nil {
		return nil, toStatus(err)
	}
	result, err := s.core.Transfer(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return object(map[string]*structpb.Value{
		"message":              structpb.NewStringValue(result.Message),
		"sender_new_balance":   decimalValue(result.SenderNewBalance),
		"receiver_new_balance": decimalValue(result.ReceiverNewBalance),
		"transactions":         encodeTransactions(result.Transactions),
		"replayed":             structpb.NewBoolValue(result.Replayed),
	}), nil
}

func encodeBalanceResult(result *usecase.BalanceResult) *structpb.Struct {
	return object(map[string]*structpb.Value{
		"message":     structpb.NewStringValue(result.Message),
		"new_balance": decimalValue(result.NewBalance),
		"transaction": encodeTransaction(&result.Transaction),
		"replayed":    structpb.NewBoolValue(result.Replayed),
	})
}

var _ LedgerServer = (*GrpcServer)(nil)
