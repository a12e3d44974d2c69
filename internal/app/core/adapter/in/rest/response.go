package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// errorBody 失敗回應
type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"message":"Failed to encode response"}`, http.StatusInternalServerError)
	}
}

// statusOf 錯誤分類對應的 HTTP 狀態碼
// PIN 錯誤與餘額不足回 400
func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidCredential, domain.KindInsufficientFunds:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// transferMessages 轉帳時 PIN 與餘額都指轉出帳戶
var transferMessages = map[domain.Kind]string{
	domain.KindInvalidCredential: "Invalid pin for sender account",
	domain.KindInsufficientFunds: "Insufficient funds in sender account",
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeErrorWith(w, r, err, nil)
}

// writeErrorWith 同 writeError，messages 可依錯誤分類覆寫回應訊息
func (h *Handler) writeErrorWith(w http.ResponseWriter, r *http.Request, err error, messages map[domain.Kind]string) {
	kind := domain.KindOf(err)
	body := errorBody{}
	switch kind {
	case domain.KindValidation:
		body.Message = "Invalid request"
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			body.Errors = verr.Fields
		} else {
			body.Errors = map[string]string{"amount": err.Error()}
		}
	case domain.KindNotFound:
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			body.Message = "Account not found"
		case errors.Is(err, domain.ErrCustomerNotFound):
			body.Message = "Customer not found"
		default:
			body.Message = "Not found"
		}
	case domain.KindInvalidCredential:
		body.Message = "Invalid pin"
	case domain.KindInsufficientFunds:
		body.Message = "Insufficient funds"
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		body.Message = "Something went wrong"
	}
	if msg, ok := messages[kind]; ok {
		body.Message = msg
	}
	writeJSON(w, statusOf(kind), body)
}
