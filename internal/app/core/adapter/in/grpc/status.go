package grpc

import (
	"errors"
	"fmt"
	"sort"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// toStatus 將業務錯誤對應為 gRPC 狀態碼
//
//	validation         -> InvalidArgument (附 BadRequest 欄位明細)
//	not_found          -> NotFound
//	invalid_credential -> PermissionDenied
//	insufficient_funds -> FailedPrecondition
//	其他               -> Internal (不對外揭露原因)
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		st := status.New(codes.InvalidArgument, err.Error())
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			if detailed, derr := st.WithDetails(badRequest(verr.Fields)); derr == nil {
				st = detailed
			}
		}
		return st.Err()
	case domain.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case domain.KindInvalidCredential:
		return status.Error(codes.PermissionDenied, domain.ErrInvalidPIN.Error())
	case domain.KindInsufficientFunds:
		return status.Error(codes.FailedPrecondition, domain.ErrInsufficientBalance.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func badRequest(fieldErrs map[string]string) *errdetails.BadRequest {
	keys := make([]string, 0, len(fieldErrs))
	for k := range fieldErrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	br := &errdetails.BadRequest{}
	for _, k := range keys {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       k,
			Description: fieldErrs[k],
		})
	}
	return br
}

// fromStatus 將 gRPC 狀態還原為可用 errors.Is 判斷的業務錯誤
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.OK:
		return nil
	case codes.InvalidArgument:
		verr := &domain.ValidationError{Fields: map[string]string{}}
		for _, d := range st.Details() {
			if br, ok := d.(*errdetails.BadRequest); ok {
				for _, v := range br.GetFieldViolations() {
					verr.Fields[v.GetField()] = v.GetDescription()
				}
			}
		}
		if len(verr.Fields) == 0 {
			verr.Fields["request"] = st.Message()
		}
		return verr
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), domain.ErrNotFound)
	case codes.PermissionDenied:
		return domain.ErrInvalidPIN
	case codes.FailedPrecondition:
		return domain.ErrInsufficientBalance
	default:
		return err
	}
}
