package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// IdempotencyKeyHeader 選填的冪等鍵 (UUID)，重送時不會重複入帳
const IdempotencyKeyHeader = "Idempotency-Key"

// maxBodyBytes 請求本文上限
const maxBodyBytes = 1 << 20

// Handler HTTP 請求轉為 CoreUseCase 呼叫
type Handler struct {
	core   *usecase.CoreUseCase
	logger *slog.Logger
}

func NewHandler(core *usecase.CoreUseCase, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{core: core, logger: logger}
}

// decode 解析 JSON 本文，失敗時已寫出 400
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, domain.NewValidationError("body", "must be valid JSON: "+err.Error()))
		return false
	}
	return true
}

// reference 讀取 Idempotency-Key，失敗時已寫出 400
func (h *Handler) reference(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if raw == "" {
		return uuid.Nil, true
	}
	ref, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, r, domain.NewValidationError(IdempotencyKeyHeader, "must be a valid uuid"))
		return uuid.Nil, false
	}
	return ref, true
}

// parseID 解析路徑或查詢參數中的 ID
func parseID(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, domain.NewValidationError(field, "is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(field, "must be a positive integer")
	}
	return id, nil
}

// createAccountWithCustomer POST /accounts/create_account_with_customer
func (h *Handler) createAccountWithCustomer(w http.ResponseWriter, r *http.Request) {
	var body createAccountWithCustomerBody
	if !h.decode(w, r, &body) {
		return
	}
	if body.Customer == nil || body.Account == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Customer and Account details are required"})
		return
	}

	customer, account, err := h.core.CreateAccountWithCustomer(r.Context(),
		usecase.CustomerInput{
			Name:    body.Customer.Name,
			Email:   body.Customer.Email,
			Phone:   body.Customer.Phone,
			Address: body.Customer.Address,
		},
		usecase.AccountInput{
			PIN:  string(body.Account.PIN),
			Type: body.Account.Type,
		},
	)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Account created successfully",
		"customer": customer,
		"account":  account,
	})
}

// getAccount GET /accounts/{id}
func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	account, err := h.core.GetAccount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// getCustomer GET /customers/{id}
func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	customer, err := h.core.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

// findCustomerByPhone GET /customers?phone=
func (h *Handler) findCustomerByPhone(w http.ResponseWriter, r *http.Request) {
	customer, err := h.core.GetCustomerByPhone(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

// listTransactions GET /transactions?accountId=
func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("accountId", r.URL.Query().Get("accountId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	txs, err := h.core.GetTransactionsForAccount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// deposit POST /transactions/deposit
func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.reference(w, r)
	if !ok {
		return
	}
	var body depositBody
	if !h.decode(w, r, &body) {
		return
	}
	result, err := h.core.Deposit(r.Context(), usecase.DepositRequest{
		AccountID: int64(body.AccountID),
		Amount:    string(body.Amount),
		PIN:       string(body.PIN),
		Reference: ref,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// withdraw POST /transactions/withdraw
func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.reference(w, r)
	if !ok {
		return
	}
	var body depositBody
	if !h.decode(w, r, &body) {
		return
	}
	result, err := h.core.Withdraw(r.Context(), usecase.WithdrawRequest{
		AccountID: int64(body.AccountID),
		Amount:    string(body.Amount),
		PIN:       string(body.PIN),
		Reference: ref,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// transfer POST /transactions/transfer
func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.reference(w, r)
	if !ok {
		return
	}
	var body transferBody
	if !h.decode(w, r, &body) {
		return
	}
	result, err := h.core.Transfer(r.Context(), usecase.TransferRequest{
		SenderID:   int64(body.SenderID),
		ReceiverID: int64(body.ReceiverID),
		Amount:     string(body.Amount),
		PIN:        string(body.PIN),
		Reference:  ref,
	})
	if err != nil {
		h.writeErrorWith(w, r, err, transferMessages)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
