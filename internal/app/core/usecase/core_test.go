package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

const pin = "1234"

func newCore(t *testing.T) *usecase.CoreUseCase {
	t.Helper()
	store, err := memory.NewMutexLedger(nil)
	if err != nil {
		t.Fatalf("NewMutexLedger: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return usecase.NewCoreUseCase(store, usecase.NewBcryptPINs(bcrypt.MinCost), logger)
}

func openAccount(t *testing.T, core *usecase.CoreUseCase, phone string) *domain.Account {
	t.Helper()
	_, account, err := core.CreateAccountWithCustomer(context.Background(),
		usecase.CustomerInput{Name: "Alice", Email: "alice@example.com", Phone: phone, Address: "Taipei"},
		usecase.AccountInput{PIN: pin, Type: "saving"},
	)
	if err != nil {
		t.Fatalf("CreateAccountWithCustomer: %v", err)
	}
	return account
}

func fund(t *testing.T, core *usecase.CoreUseCase, accountID int64, amount string) {
	t.Helper()
	if _, err := core.Deposit(context.Background(), usecase.DepositRequest{AccountID: accountID, Amount: amount, PIN: pin}); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
}

func balanceOf(t *testing.T, core *usecase.CoreUseCase, accountID int64) decimal.Decimal {
	t.Helper()
	account, err := core.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	return account.Balance
}

func TestDepositWithdrawScenario(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()
	account := openAccount(t, core, "0911111111")
	if !account.Balance.IsZero() || account.Type != domain.AccountTypeSaving {
		t.Fatalf("new account = %+v", account)
	}

	dep, err := core.Deposit(ctx, usecase.DepositRequest{AccountID: account.ID, Amount: "100", PIN: pin})
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if !dep.NewBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("new balance = %s", dep.NewBalance)
	}
	if dep.Message != "Deposited 100 to account 1" {
		t.Fatalf("message = %q", dep.Message)
	}

	wd, err := core.Withdraw(ctx, usecase.WithdrawRequest{AccountID: account.ID, Amount: "30.25", PIN: pin})
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if !wd.NewBalance.Equal(decimal.RequireFromString("69.75")) {
		t.Fatalf("new balance = %s", wd.NewBalance)
	}

	txs, err := core.GetTransactionsForAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetTransactionsForAccount: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	first, second := txs[0], txs[1]
	if first.Type != domain.TransactionTypeDeposit || !first.InitialBalance.IsZero() || !first.FinalBalance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("first transaction = %+v", first)
	}
	if second.Type != domain.TransactionTypeWithdraw || !second.InitialBalance.Equal(first.FinalBalance) {
		t.Fatalf("second transaction = %+v", second)
	}
	if second.ID <= first.ID {
		t.Fatalf("transaction ids not increasing: %d, %d", first.ID, second.ID)
	}
}

func TestRejectedOperationsLeaveNoTrace(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()
	account := openAccount(t, core, "0911111111")
	fund(t, core, account.ID, "50")

	tests := []struct {
		name string
		run  func() error
		kind domain.Kind
	}{
		{"wrong pin", func() error {
			_, err := core.Withdraw(ctx, usecase.WithdrawRequest{AccountID: account.ID, Amount: "1", PIN: "9999"})
			return err
		}, domain.KindInvalidCredential},
		{"insufficient funds", func() error {
			_, err := core.Withdraw(ctx, usecase.WithdrawRequest{AccountID: account.ID, Amount: "50.0001", PIN: pin})
			return err
		}, domain.KindInsufficientFunds},
		{"missing fields", func() error {
			_, err := core.Deposit(ctx, usecase.DepositRequest{})
			return err
		}, domain.KindValidation},
		{"negative amount", func() error {
			_, err := core.Deposit(ctx, usecase.DepositRequest{AccountID: account.ID, Amount: "-1", PIN: pin})
			return err
		}, domain.KindValidation},
		{"unknown account", func() error {
			_, err := core.Deposit(ctx, usecase.DepositRequest{AccountID: 404, Amount: "1", PIN: pin})
			return err
		}, domain.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if got := domain.KindOf(err); got != tt.kind {
				t.Fatalf("kind = %s, want %s (err %v)", got, tt.kind, err)
			}
		})
	}

	if got := balanceOf(t, core, account.ID); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance = %s, want 50", got)
	}
	txs, _ := core.GetTransactionsForAccount(ctx, account.ID)
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
}

func TestAmountsBeyondColumnRangeAreRejected(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()
	account := openAccount(t, core, "0911111111")
	receiver := openAccount(t, core, "0922222222")

	for _, amount := range []string{"1e30", "1e2000000000", "1e-2000000000"} {
		t.Run(amount, func(t *testing.T) {
			done := make(chan error, 1)
			go func() {
				_, err := core.Deposit(ctx, usecase.DepositRequest{AccountID: account.ID, Amount: amount, PIN: pin})
				done <- err
			}()
			select {
			case err := <-done:
				if domain.KindOf(err) != domain.KindValidation {
					t.Fatalf("Deposit(%s) err = %v, want validation", amount, err)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("Deposit(%s) did not return", amount)
			}
		})
	}

	fund(t, core, account.ID, "9999999999999999")
	_, err := core.Deposit(ctx, usecase.DepositRequest{AccountID: account.ID, Amount: "1", PIN: pin})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("deposit past the balance cap: err = %v", err)
	}
	fund(t, core, receiver.ID, "1")
	_, err = core.Transfer(ctx, usecase.TransferRequest{SenderID: receiver.ID, ReceiverID: account.ID, Amount: "1", PIN: pin})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("transfer past the balance cap: err = %v", err)
	}
	if got := balanceOf(t, core, account.ID); !got.Equal(decimal.RequireFromString("9999999999999999")) {
		t.Fatalf("balance = %s", got)
	}
	if got := balanceOf(t, core, receiver.ID); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("sender balance = %s, want 1", got)
	}
}

func TestMissingFieldsAreReportedTogether(t *testing.T) {
	core := newCore(t)
	_, err := core.Transfer(context.Background(), usecase.TransferRequest{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	for _, field := range []string{"sender_account", "receiver_account", "amount", "pin"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("missing field error for %s: %v", field, verr.Fields)
		}
	}
}

func TestTransfer(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()
	alice := openAccount(t, core, "0911111111")
	bob := openAccount(t, core, "0922222222")
	fund(t, core, alice.ID, "100")

	res, err := core.Transfer(ctx, usecase.TransferRequest{SenderID: alice.ID, ReceiverID: bob.ID, Amount: "40", PIN: pin})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if !res.SenderNewBalance.Equal(decimal.NewFromInt(60)) || !res.ReceiverNewBalance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("balances = %s / %s", res.SenderNewBalance, res.ReceiverNewBalance)
	}
	if res.Message != "Transferred 40 from account 1 to account 2" {
		t.Fatalf("message = %q", res.Message)
	}

	aliceTxs, _ := core.GetTransactionsForAccount(ctx, alice.ID)
	bobTxs, _ := core.GetTransactionsForAccount(ctx, bob.ID)
	if last := aliceTxs[len(aliceTxs)-1]; last.Type != domain.TransactionTypeTransferOut {
		t.Fatalf("alice last tx = %s", last.Type)
	}
	if len(bobTxs) != 1 || bobTxs[0].Type != domain.TransactionTypeTransferIn {
		t.Fatalf("bob txs = %+v", bobTxs)
	}

	t.Run("pin of receiver is not accepted", func(t *testing.T) {
		bobPIN := "5678"
		_, other, err := core.CreateAccountWithCustomer(ctx,
			usecase.CustomerInput{Name: "Carol", Email: "carol@example.com", Phone: "0933333333", Address: "Tainan"},
			usecase.AccountInput{PIN: bobPIN, Type: "CURRENT"},
		)
		if err != nil {
			t.Fatal(err)
		}
		_, err = core.Transfer(ctx, usecase.TransferRequest{SenderID: alice.ID, ReceiverID: other.ID, Amount: "1", PIN: bobPIN})
		if !errors.Is(err, domain.ErrInvalidPIN) {
			t.Fatalf("err = %v, want ErrInvalidPIN", err)
		}
	})

	t.Run("self transfer", func(t *testing.T) {
		_, err := core.Transfer(ctx, usecase.TransferRequest{SenderID: alice.ID, ReceiverID: alice.ID, Amount: "1", PIN: pin})
		if domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("err = %v, want validation", err)
		}
	})

	t.Run("unknown receiver", func(t *testing.T) {
		_, err := core.Transfer(ctx, usecase.TransferRequest{SenderID: alice.ID, ReceiverID: 999, Amount: "1", PIN: pin})
		if !errors.Is(err, domain.ErrAccountNotFound) {
			t.Fatalf("err = %v, want ErrAccountNotFound", err)
		}
	})

	t.Run("insufficient funds keeps both balances", func(t *testing.T) {
		_, err := core.Transfer(ctx, usecase.TransferRequest{SenderID: bob.ID, ReceiverID: alice.ID, Amount: "40.0001", PIN: pin})
		if !errors.Is(err, domain.ErrInsufficientBalance) {
			t.Fatalf("err = %v, want ErrInsufficientBalance", err)
		}
		if got := balanceOf(t, core, bob.ID); !got.Equal(decimal.NewFromInt(40)) {
			t.Fatalf("bob balance = %s", got)
		}
		if got := balanceOf(t, core, alice.ID); !got.Equal(decimal.NewFromInt(60)) {
			t.Fatalf("alice balance = %s", got)
		}
	})
}

func TestConcurrentDepositsAreNotLost(t *testing.T) {
	core := newCore(t)
	account := openAccount(t, core, "0911111111")

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := core.Deposit(context.Background(), usecase.DepositRequest{AccountID: account.ID, Amount: "0.5", PIN: pin}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := balanceOf(t, core, account.ID); !got.Equal(decimal.NewFromInt(n / 2)) {
		t.Fatalf("balance = %s, want %d", got, n/2)
	}
	txs, _ := core.GetTransactionsForAccount(context.Background(), account.ID)
	if len(txs) != n {
		t.Fatalf("got %d transactions, want %d", len(txs), n)
	}
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	core := newCore(t)
	account := openAccount(t, core, "0911111111")
	fund(t, core, account.ID, "10")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := core.Withdraw(context.Background(), usecase.WithdrawRequest{AccountID: account.ID, Amount: "1", PIN: pin})
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case !errors.Is(err, domain.ErrInsufficientBalance):
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("%d withdrawals succeeded, want 10", succeeded)
	}
	if got := balanceOf(t, core, account.ID); !got.IsZero() {
		t.Fatalf("balance = %s, want 0", got)
	}
}

func TestIdempotentReference(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()
	account := openAccount(t, core, "0911111111")
	ref := uuid.New()

	first, err := core.Deposit(ctx, usecase.DepositRequest{AccountID: account.ID, Amount: "10", PIN: pin, Reference: ref})
	if err != nil {
		t.Fatal(err)
	}
	again, err := core.Deposit(ctx, usecase.DepositRequest{AccountID: account.ID, Amount: "10", PIN: pin, Reference: ref})
	if err != nil {
		t.Fatal(err)
	}
	if first.Replayed || !again.Replayed {
		t.Fatalf("replayed flags = %v, %v", first.Replayed, again.Replayed)
	}
	if again.Transaction.ID != first.Transaction.ID {
		t.Fatalf("replay returned transaction %d, want %d", again.Transaction.ID, first.Transaction.ID)
	}
	if got := balanceOf(t, core, account.ID); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("balance = %s, want 10", got)
	}

	_, err = core.Withdraw(ctx, usecase.WithdrawRequest{AccountID: account.ID, Amount: "1", PIN: pin, Reference: ref})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("reusing a reference for another operation: err = %v", err)
	}
}

func TestDirectory(t *testing.T) {
	core := newCore(t)
	ctx := context.Background()

	t.Run("invalid input creates nothing", func(t *testing.T) {
		_, _, err := core.CreateAccountWithCustomer(ctx,
			usecase.CustomerInput{Name: "Alice", Email: "not-an-email", Phone: "0911111111", Address: "Taipei"},
			usecase.AccountInput{PIN: "12", Type: "GOLD"},
		)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
		for _, field := range []string{"customer.email", "account.pin", "account.type"} {
			if _, ok := verr.Fields[field]; !ok {
				t.Errorf("missing %s in %v", field, verr.Fields)
			}
		}
		if _, err := core.GetCustomerByPhone(ctx, "0911111111"); !errors.Is(err, domain.ErrCustomerNotFound) {
			t.Fatalf("customer was created: %v", err)
		}
	})

	customer, err := core.CreateCustomer(ctx, usecase.CustomerInput{Name: "Bob", Email: "bob@example.com", Phone: "09AB", Address: "Taichung"})
	if err != nil {
		t.Fatal(err)
	}
	account, err := core.CreateAccount(ctx, customer.ID, usecase.AccountInput{PIN: pin, Type: "CURRENT"})
	if err != nil {
		t.Fatal(err)
	}
	if account.CustomerID != customer.ID || account.PINHash == pin {
		t.Fatalf("account = %+v", account)
	}

	t.Run("phone lookup is case insensitive", func(t *testing.T) {
		found, err := core.GetCustomerByPhone(ctx, " 09ab ")
		if err != nil {
			t.Fatal(err)
		}
		if found.ID != customer.ID {
			t.Fatalf("found customer %d, want %d", found.ID, customer.ID)
		}
	})

	t.Run("lookups", func(t *testing.T) {
		if _, err := core.GetCustomerByPhone(ctx, ""); domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("empty phone err = %v", err)
		}
		if _, err := core.GetAccount(ctx, 999); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Fatalf("GetAccount err = %v", err)
		}
		if _, err := core.GetCustomer(ctx, customer.ID); err != nil {
			t.Fatalf("GetCustomer: %v", err)
		}
		if _, err := core.CreateAccount(ctx, 999, usecase.AccountInput{PIN: pin, Type: "SAVING"}); !errors.Is(err, domain.ErrCustomerNotFound) {
			t.Fatalf("CreateAccount for unknown customer err = %v", err)
		}
		txs, err := core.GetTransactionsForAccount(ctx, 999)
		if err != nil || len(txs) != 0 {
			t.Fatalf("unknown account transactions = %v, %v", txs, err)
		}
		if _, err := core.GetTransactionsForAccount(ctx, 0); domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("missing account id err = %v", err)
		}
	})
}
