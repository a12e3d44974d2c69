package grpc

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// fields 讀取 Struct 欄位的輔助型別；讀取失敗的欄位記錄在 errs
type fields struct {
	values map[string]*structpb.Value
	errs   map[string]string
}

func newFields(in *structpb.Struct) *fields {
	return &fields{values: in.GetFields(), errs: map[string]string{}}
}

// nested 取得子物件，不存在時回傳空的 fields
func (f *fields) nested(key string) *fields {
	v, ok := f.values[key]
	if !ok {
		return &fields{errs: f.errs}
	}
	s := v.GetStructValue()
	if s == nil {
		f.errs[key] = "must be an object"
		return &fields{errs: f.errs}
	}
	return &fields{values: s.GetFields(), errs: f.errs}
}

// str 字串欄位；數字會轉成字串 (金額可以用任一種形式傳入)
func (f *fields) str(key string) string {
	v, ok := f.values[key]
	if !ok {
		return ""
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
	case *structpb.Value_NullValue:
		return ""
	default:
		f.errs[key] = "must be a string"
		return ""
	}
}

// id 整數欄位 (數字或數字字串)；缺少時回傳 0
func (f *fields) id(key string) int64 {
	v, ok := f.values[key]
	if !ok {
		return 0
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || n < 0 || n >= math.MaxInt64 {
			f.errs[key] = "must be a positive integer"
			return 0
		}
		return int64(n)
	case *structpb.Value_StringValue:
		if strings.TrimSpace(kind.StringValue) == "" {
			return 0
		}
		n, err := strconv.ParseInt(strings.TrimSpace(kind.StringValue), 10, 64)
		if err != nil || n < 0 {
			f.errs[key] = "must be a positive integer"
			return 0
		}
		return n
	case *structpb.Value_NullValue:
		return 0
	default:
		f.errs[key] = "must be a positive integer"
		return 0
	}
}

// reference 選填的冪等鍵 (UUID)
func (f *fields) reference(key string) uuid.UUID {
	raw := strings.TrimSpace(f.str(key))
	if raw == "" {
		return uuid.Nil
	}
	ref, err := uuid.Parse(raw)
	if err != nil {
		f.errs[key] = "must be a valid uuid"
		return uuid.Nil
	}
	return ref
}

func (f *fields) boolean(key string) bool {
	return f.values[key].GetBoolValue()
}

func (f *fields) decimal(key string) decimal.Decimal {
	raw := f.str(key)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		f.errs[key] = "must be a number"
		return decimal.Zero
	}
	return d
}

func (f *fields) time(key string) time.Time {
	raw := f.str(key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		f.errs[key] = "must be an RFC 3339 timestamp"
		return time.Time{}
	}
	return t
}

func (f *fields) list(key string) []*structpb.Value {
	return f.values[key].GetListValue().GetValues()
}

// err 有任何欄位錯誤時回傳 ValidationError
func (f *fields) err() error {
	if len(f.errs) == 0 {
		return nil
	}
	return &domain.ValidationError{Fields: f.errs}
}

func object(values map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: values}
}

func idValue(id int64) *structpb.Value {
	return structpb.NewNumberValue(float64(id))
}

func decimalValue(d decimal.Decimal) *structpb.Value {
	return structpb.NewStringValue(d.StringFixed(domain.CurrencyScale))
}

func timeValue(t time.Time) *structpb.Value {
	return structpb.NewStringValue(t.UTC().Format(time.RFC3339Nano))
}

func referenceValue(ref uuid.UUID) *structpb.Value {
	if ref == uuid.Nil {
		return structpb.NewStringValue("")
	}
	return structpb.NewStringValue(ref.String())
}

func encodeCustomer(c *domain.Customer) *structpb.Struct {
	return object(map[string]*structpb.Value{
		"id":         idValue(c.ID),
		"name":       structpb.NewStringValue(c.Name),
		"email":      structpb.NewStringValue(c.Email),
		"phone":      structpb.NewStringValue(c.Phone),
		"address":    structpb.NewStringValue(c.Address),
		"active":     structpb.NewBoolValue(c.Active),
		"created_at": timeValue(c.CreatedAt),
	})
}

func decodeCustomer(f *fields) *domain.Customer {
	return &domain.Customer{
		ID:        f.id("id"),
		Name:      f.str("name"),
		Email:     f.str("email"),
		Phone:     f.str("phone"),
		Address:   f.str("address"),
		Active:    f.boolean("active"),
		CreatedAt: f.time("created_at"),
	}
}

// encodeAccount PIN 雜湊不輸出
func encodeAccount(a *domain.Account) *structpb.Struct {
	return object(map[string]*structpb.Value{
		"id":          idValue(a.ID),
		"customer_id": idValue(a.CustomerID),
		"balance":     decimalValue(a.Balance),
		"type":        structpb.NewStringValue(string(a.Type)),
		"active":      structpb.NewBoolValue(a.Active),
		"created_at":  timeValue(a.CreatedAt),
	})
}

func decodeAccount(f *fields) *domain.Account {
	return &domain.Account{
		ID:         f.id("id"),
		CustomerID: f.id("customer_id"),
		Balance:    f.decimal("balance"),
		Type:       domain.AccountType(f.str("type")),
		Active:     f.boolean("active"),
		CreatedAt:  f.time("created_at"),
	}
}

func encodeTransaction(tx *domain.Transaction) *structpb.Value {
	return structpb.NewStructValue(object(map[string]*structpb.Value{
		"id":              idValue(tx.ID),
		"account_id":      idValue(tx.AccountID),
		"initial_balance": decimalValue(tx.InitialBalance),
		"final_balance":   decimalValue(tx.FinalBalance),
		"type":            structpb.NewStringValue(string(tx.Type)),
		"reference":       referenceValue(tx.Reference),
		"created_at":      timeValue(tx.CreatedAt),
	}))
}

func decodeTransaction(f *fields) domain.Transaction {
	return domain.Transaction{
		ID:             f.id("id"),
		AccountID:      f.id("account_id"),
		InitialBalance: f.decimal("initial_balance"),
		FinalBalance:   f.decimal("final_balance"),
		Type:           domain.TransactionType(f.str("type")),
		Reference:      f.reference("reference"),
		CreatedAt:      f.time("created_at"),
	}
}

func encodeTransactions(txs []domain.Transaction) *structpb.Value {
	values := make([]*structpb.Value, 0, len(txs))
	for i := range txs {
		values = append(values, encodeTransaction(&txs[i]))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func decodeTransactions(values []*structpb.Value) []domain.Transaction {
	txs := make([]domain.Transaction, 0, len(values))
	for _, v := range values {
		txs = append(txs, decodeTransaction(newFields(v.GetStructValue())))
	}
	return txs
}
