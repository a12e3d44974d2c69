package usecase

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 錯誤欄位名稱使用 json tag，與 adapter 收到的欄位一致
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validateStruct 執行 struct tag 驗證，欄位名稱加上 prefix (可為空)
func validateStruct(prefix string, v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields[prefix+"request"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		fields[prefix+fe.Field()] = describe(fe)
	}
	return fields
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// fieldErrors 收集多個來源的欄位錯誤，最後一次轉為 ValidationError
type fieldErrors map[string]string

func (f fieldErrors) merge(other map[string]string) {
	for k, v := range other {
		if _, exists := f[k]; !exists {
			f[k] = v
		}
	}
}

func (f fieldErrors) add(field, reason string) {
	f.merge(map[string]string{field: reason})
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &domain.ValidationError{Fields: f}
}
