package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName gRPC 服務全名
const ServiceName = "ledger.v1.LedgerService"

// 方法名稱
const (
	MethodCreateAccountWithCustomer = "CreateAccountWithCustomer"
	MethodGetAccount                = "GetAccount"
	MethodGetCustomerByPhone        = "GetCustomerByPhone"
	MethodGetTransactions           = "GetTransactions"
	MethodDeposit                   = "Deposit"
	MethodWithdraw                  = "Withdraw"
	MethodTransfer                  = "Transfer"
)

// LedgerServer 帳本 gRPC 服務；請求與回應皆為 google.protobuf.Struct
type LedgerServer interface {
	CreateAccountWithCustomer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCustomerByPhone(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTransactions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Deposit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Withdraw(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Transfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterLedgerServer 將服務註冊到 gRPC Server
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

type unaryCall func(srv LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// LedgerServiceDesc 服務描述
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: MethodCreateAccountWithCustomer,
			Handler: unaryHandler(MethodCreateAccountWithCustomer, func(s LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.CreateAccountWithCustomer(ctx, in)
			}),
		},
		{
			MethodName: MethodGetAccount,
			Handler: unaryHandler(MethodGetAccount, func(s LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.GetAccount(ctx, in)
			}),
		},
		{
			MethodName: MethodGetCustomerByPhone,
			Handler: unaryHandler(MethodGetCustomerByPhone, func(s LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.GetCustomerByPhone(ctx, in)
			}),
		},
		{
			MethodName: MethodGetTransactions,
			Handler: unaryHandler(MethodGetTransactions, func(s LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.GetTransactions(ctx, in)
			}),
		},
		{
			MethodName: MethodDeposit,
			Handler: unaryHandler(MethodDeposit, func(s LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.Deposit(ctx, in)
			}),
		},
		{
			MethodName: MethodWithdraw,
			Handler: unaryHandler(MethodWithdraw, func(s LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.Withdraw(ctx, in)
			}),
		},
		{
			MethodName: MethodTransfer,
			Handler: unaryHandler(MethodTransfer, func(s LedgerServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.Transfer(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/app/core/adapter/in/grpc/service.go",
}
