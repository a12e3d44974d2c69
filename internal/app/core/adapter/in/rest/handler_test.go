package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := memory.NewMutexLedger(nil)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	core := usecase.NewCoreUseCase(store, usecase.NewBcryptPINs(bcrypt.MinCost), logger)
	ts := httptest.NewServer(NewRouter(NewHandler(core, logger)))
	t.Cleanup(ts.Close)
	return ts
}

// doJSON 送出 JSON 請求並檢查狀態碼；out 非 nil 時解析回應
func doJSON(t *testing.T, method, url string, body any, headers map[string]string, wantCode int, out any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantCode {
		t.Fatalf("%s %s: code=%d want=%d body=%s", method, url, resp.StatusCode, wantCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
}

type created struct {
	Message  string `json:"message"`
	Customer struct {
		ID    int64  `json:"id"`
		Phone string `json:"phone"`
	} `json:"customer"`
	Account struct {
		ID      int64  `json:"id"`
		Balance string `json:"balance"`
		PIN     string `json:"pin"`
	} `json:"account"`
}

func createAccount(t *testing.T, ts *httptest.Server, phone string) created {
	t.Helper()
	var out created
	doJSON(t, http.MethodPost, ts.URL+"/accounts/create_account_with_customer", map[string]any{
		"customer": map[string]any{"name": "Alice", "email": "alice@example.com", "phone": phone, "address": "Taipei"},
		"account":  map[string]any{"pin": 1234, "type": "SAVING"},
	}, nil, http.StatusCreated, &out)
	return out
}

func TestHTTPFlow(t *testing.T) {
	ts := newServer(t)
	alice := createAccount(t, ts, "0911111111")
	bob := createAccount(t, ts, "0922222222")
	if alice.Message != "Account created successfully" || alice.Account.Balance != "0" || alice.Account.PIN != "" {
		t.Fatalf("created = %+v", alice)
	}

	var dep struct {
		Message    string `json:"message"`
		NewBalance string `json:"new_balance"`
	}
	doJSON(t, http.MethodPost, ts.URL+"/transactions/deposit",
		map[string]any{"accountId": alice.Account.ID, "amount": 100, "pin": "1234"}, nil, http.StatusOK, &dep)
	if dep.NewBalance != "100" || dep.Message != "Deposited 100 to account 1" {
		t.Fatalf("deposit = %+v", dep)
	}

	doJSON(t, http.MethodPost, ts.URL+"/transactions/withdraw",
		map[string]any{"accountId": "1", "amount": "20.5", "pin": "1234"}, nil, http.StatusOK, &dep)
	if dep.NewBalance != "79.5" {
		t.Fatalf("withdraw = %+v", dep)
	}

	var tr struct {
		SenderNewBalance   string `json:"sender_new_balance"`
		ReceiverNewBalance string `json:"receiver_new_balance"`
	}
	doJSON(t, http.MethodPost, ts.URL+"/transactions/transfer",
		map[string]any{"sender_account": alice.Account.ID, "receiver_account": bob.Account.ID, "amount": "29.5", "pin": "1234"},
		nil, http.StatusOK, &tr)
	if tr.SenderNewBalance != "50" || tr.ReceiverNewBalance != "29.5" {
		t.Fatalf("transfer = %+v", tr)
	}

	var txs []struct {
		Type         string `json:"type"`
		FinalBalance string `json:"final_balance"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/transactions?accountId=1", nil, nil, http.StatusOK, &txs)
	if len(txs) != 3 || txs[2].Type != "TRANSFER_OUT" || txs[2].FinalBalance != "50" {
		t.Fatalf("transactions = %+v", txs)
	}

	var account struct {
		ID      int64  `json:"id"`
		Balance string `json:"balance"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/accounts/2", nil, nil, http.StatusOK, &account)
	if account.Balance != "29.5" {
		t.Fatalf("account = %+v", account)
	}

	var customer struct {
		ID int64 `json:"id"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/customers?phone=0922222222", nil, nil, http.StatusOK, &customer)
	if customer.ID != bob.Customer.ID {
		t.Fatalf("customer = %+v", customer)
	}
	doJSON(t, http.MethodGet, ts.URL+"/customers/1", nil, nil, http.StatusOK, &customer)
	if customer.ID != alice.Customer.ID {
		t.Fatalf("customer = %+v", customer)
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	ts := newServer(t)
	createAccount(t, ts, "0911111111")
	createAccount(t, ts, "0922222222")
	doJSON(t, http.MethodPost, ts.URL+"/transactions/deposit",
		map[string]any{"accountId": 1, "amount": "10", "pin": "1234"}, nil, http.StatusOK, nil)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		headers  map[string]string
		wantCode int
		wantMsg  string
	}{
		{"missing fields", http.MethodPost, "/transactions/deposit", map[string]any{}, nil, http.StatusBadRequest, "Invalid request"},
		{"bad json", http.MethodPost, "/transactions/deposit", "{", nil, http.StatusBadRequest, "Invalid request"},
		{"wrong pin", http.MethodPost, "/transactions/withdraw", map[string]any{"accountId": 1, "amount": "1", "pin": "0000"}, nil, http.StatusBadRequest, "Invalid pin"},
		{"insufficient", http.MethodPost, "/transactions/withdraw", map[string]any{"accountId": 1, "amount": "11", "pin": "1234"}, nil, http.StatusBadRequest, "Insufficient funds"},
		{"unknown account", http.MethodPost, "/transactions/deposit", map[string]any{"accountId": 9, "amount": "1", "pin": "1234"}, nil, http.StatusNotFound, "Account not found"},
		{"bad idempotency key", http.MethodPost, "/transactions/deposit", map[string]any{"accountId": 1, "amount": "1", "pin": "1234"}, map[string]string{IdempotencyKeyHeader: "nope"}, http.StatusBadRequest, "Invalid request"},
		{"missing phone", http.MethodGet, "/customers", nil, nil, http.StatusBadRequest, "Invalid request"},
		{"unknown phone", http.MethodGet, "/customers?phone=000", nil, nil, http.StatusNotFound, "Customer not found"},
		{"missing account id", http.MethodGet, "/transactions", nil, nil, http.StatusBadRequest, "Invalid request"},
		{"bad account path", http.MethodGet, "/accounts/abc", nil, nil, http.StatusBadRequest, "Invalid request"},
		{"transfer wrong pin", http.MethodPost, "/transactions/transfer", map[string]any{"sender_account": 1, "receiver_account": 2, "amount": "1", "pin": "0000"}, nil, http.StatusBadRequest, "Invalid pin for sender account"},
		{"transfer insufficient", http.MethodPost, "/transactions/transfer", map[string]any{"sender_account": 1, "receiver_account": 2, "amount": "10.0001", "pin": "1234"}, nil, http.StatusBadRequest, "Insufficient funds in sender account"},
		{"amount too large", http.MethodPost, "/transactions/deposit", map[string]any{"accountId": 1, "amount": "1e30", "pin": "1234"}, nil, http.StatusBadRequest, "Invalid request"},
		{"missing nested objects", http.MethodPost, "/accounts/create_account_with_customer", map[string]any{"customer": map[string]any{}}, nil, http.StatusBadRequest, "Customer and Account details are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out errorBody
			doJSON(t, tt.method, ts.URL+tt.path, tt.body, tt.headers, tt.wantCode, &out)
			if out.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q (errors %v)", out.Message, tt.wantMsg, out.Errors)
			}
		})
	}
}

func TestHTTPIdempotencyKey(t *testing.T) {
	ts := newServer(t)
	createAccount(t, ts, "0911111111")
	key := map[string]string{IdempotencyKeyHeader: uuid.NewString()}
	body := map[string]any{"accountId": 1, "amount": "5", "pin": "1234"}

	var first, second struct {
		NewBalance string `json:"new_balance"`
		Replayed   bool   `json:"replayed"`
	}
	doJSON(t, http.MethodPost, ts.URL+"/transactions/deposit", body, key, http.StatusOK, &first)
	doJSON(t, http.MethodPost, ts.URL+"/transactions/deposit", body, key, http.StatusOK, &second)
	if first.Replayed || !second.Replayed || second.NewBalance != "5" {
		t.Fatalf("first=%+v second=%+v", first, second)
	}

	var account struct {
		Balance string `json:"balance"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/accounts/1", nil, nil, http.StatusOK, &account)
	if account.Balance != "5" {
		t.Fatalf("balance = %s, want 5", account.Balance)
	}
}
