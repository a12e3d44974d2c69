package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	"github.com/JoeShih716/go-bank-ledger/internal/logging"
	pkggrpc "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

const testPIN = "1234"

// 壓測：大量併發存款與雙向轉帳後，檢查餘額沒有遺失任何一筆
func main() {
	addr := flag.String("addr", "localhost:50051", "grpc server address")
	total := flag.Int("n", 10000, "number of deposits")
	concurrency := flag.Int("c", 100, "concurrent requests")
	amountFlag := flag.String("amount", "1.2500", "deposit amount")
	flag.Parse()

	logger := logging.New(config.LoggingConfig{Level: "info"})
	if err := run(logger, *addr, *total, *concurrency, *amountFlag); err != nil {
		logger.Error("load test failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, addr string, total, concurrency int, rawAmount string) error {
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	pool := pkggrpc.NewPool(pkggrpc.WithInterceptor(pkggrpc.LoggingInterceptor(logger)))
	defer pool.Close()
	conn, err := pool.GetConnection(addr)
	if err != nil {
		return err
	}
	client := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	alice, err := openAccount(ctx, client, "alice", "0900000001")
	if err != nil {
		return err
	}
	bob, err := openAccount(ctx, client, "bob", "0900000002")
	if err != nil {
		return err
	}
	logger.Info("accounts created", "alice", alice, "bob", bob)

	// 1. 併發存款
	var failed atomic.Int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	start := time.Now()
	for i := 0; i < total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := client.Deposit(ctx, alice, rawAmount, testPIN, uuid.New()); err != nil {
				failed.Add(1)
				if idx%1000 == 0 {
					logger.Warn("deposit failed", "idx", idx, "error", err)
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)
	fmt.Printf("Completed %d deposits in %v (failed %d)\n", total, elapsed, failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(total)/elapsed.Seconds())

	expected := amount.Mul(decimal.NewFromInt(int64(total) - failed.Load()))
	if err := expectBalance(ctx, client, alice, expected); err != nil {
		return err
	}

	// 2. 同一個冪等鍵重送不會重複入帳
	ref := uuid.New()
	for i := 0; i < 3; i++ {
		if _, err := client.Deposit(ctx, bob, rawAmount, testPIN, ref); err != nil {
			return fmt.Errorf("replayed deposit: %w", err)
		}
	}
	if err := expectBalance(ctx, client, bob, amount); err != nil {
		return err
	}

	// 3. 雙向轉帳 (驗證依帳號順序上鎖不會死鎖)，總額不變
	before := expected.Add(amount)
	transfers := concurrency * 10
	for i := 0; i < transfers; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			from, to := alice, bob
			if idx%2 == 1 {
				from, to = bob, alice
			}
			// 餘額不足屬於預期內的拒絕
			_, _, _ = client.Transfer(ctx, from, to, "0.0001", testPIN, uuid.New())
		}(i)
	}
	wg.Wait()

	a, err := client.GetAccount(ctx, alice)
	if err != nil {
		return err
	}
	b, err := client.GetAccount(ctx, bob)
	if err != nil {
		return err
	}
	if after := a.Balance.Add(b.Balance); !after.Equal(before) {
		return fmt.Errorf("total balance changed: before %s after %s", before, after)
	}
	fmt.Printf("OK: alice=%s bob=%s\n", a.Balance, b.Balance)
	return nil
}

func openAccount(ctx context.Context, client *grpc_adapter.Client, name, phone string) (int64, error) {
	_, account, err := client.CreateAccountWithCustomer(ctx,
		usecase.CustomerInput{
			Name:    name,
			Email:   name + "@example.com",
			Phone:   phone,
			Address: "Taipei",
		},
		usecase.AccountInput{PIN: testPIN, Type: "SAVING"},
	)
	if err != nil {
		return 0, fmt.Errorf("create account for %s: %w", name, err)
	}
	return account.ID, nil
}

func expectBalance(ctx context.Context, client *grpc_adapter.Client, accountID int64, want decimal.Decimal) error {
	account, err := client.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.Balance.Equal(want) {
		return fmt.Errorf("account %d balance = %s, want %s", accountID, account.Balance, want)
	}
	return nil
}
