package memory

import (
	"context"
	"sync"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// request 輸送帶上的一個工作，done 讓呼叫端等待執行完畢
type request struct {
	run  func()
	done chan struct{}
}

// LMAXLedger 單一 goroutine 依序處理所有請求的帳本 (Level 2)
//
// 所有讀寫都透過 requests 交給 run loop 執行，state 不需要任何鎖。
// 使用前必須呼叫 Start。
type LMAXLedger struct {
	state *state
	// 輸送帶 負責接收請求
	requests chan *request
	// run loop 結束後關閉
	stopped chan struct{}
	// Pool 減少 GC 壓力
	requestPool sync.Pool
	startOnce   sync.Once
}

// NewLMAXLedger 建立一個新的 LMAXLedger 實例，並從 WAL 恢復狀態
//
// 參數:
//
//	wal: Write-Ahead Log 實例 (nil 代表不持久化)
//	buffer: 輸送帶容量
//
// 回傳:
//
//	*LMAXLedger: LMAXLedger 實例
//	error: 初始化錯誤
func NewLMAXLedger(w *wal.WAL, buffer int) (*LMAXLedger, error) {
	if buffer <= 0 {
		buffer = 1000
	}
	ledger := &LMAXLedger{
		state:    newState(w),
		requests: make(chan *request, buffer),
		stopped:  make(chan struct{}),
		requestPool: sync.Pool{
			New: func() interface{} {
				return &request{done: make(chan struct{}, 1)}
			},
		},
	}

	// 在啟動前先恢復資料
	if err := ledger.state.recoverFromWAL(); err != nil {
		return nil, domain.NewStoreError("recover from wal", err)
	}
	return ledger, nil
}

// Start 啟動核心引擎 (非同步)；ctx 取消後處理完剩餘請求即停止
func (l *LMAXLedger) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

// Wait 等待 run loop 處理完剩餘請求並結束 (需先呼叫 Start)
func (l *LMAXLedger) Wait() {
	<-l.stopped
}

func (l *LMAXLedger) run(ctx context.Context) {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的請求處理完
			l.drain()
			return
		case req := <-l.requests:
			l.process(req)
		}
	}
}

func (l *LMAXLedger) drain() {
	for {
		select {
		case req := <-l.requests:
			l.process(req)
		default:
			return
		}
	}
}

func (l *LMAXLedger) process(req *request) {
	req.run()
	req.done <- struct{}{}
}

// submit 把工作放上輸送帶並等待 run loop 執行完畢
func (l *LMAXLedger) submit(ctx context.Context, fn func()) error {
	req := l.requestPool.Get().(*request)
	req.run = fn

	select {
	case l.requests <- req:
	case <-ctx.Done():
		l.requestPool.Put(req)
		return domain.NewStoreError("submit", ctx.Err())
	case <-l.stopped:
		l.requestPool.Put(req)
		return domain.NewStoreError("submit", ErrLedgerStopped)
	}

	// 已進入輸送帶的工作一定會被執行 (除非 loop 已停止)，不因 ctx 取消而放棄等待
	select {
	case <-req.done:
	case <-l.stopped:
		select {
		case <-req.done:
		default:
			// 工作仍留在 channel 裡，不放回 Pool
			return domain.NewStoreError("submit", ErrLedgerStopped)
		}
	}
	req.run = nil
	l.requestPool.Put(req)
	return nil
}

// GetAccount 取得指定帳戶目前狀態
func (l *LMAXLedger) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	var (
		account domain.Account
		found   bool
	)
	if err := l.submit(ctx, func() {
		entry, ok := l.state.accounts[accountID]
		if ok {
			account, found = entry.account, true
		}
	}); err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrAccountNotFound
	}
	return &account, nil
}

// AtomicUpdate 在 run loop 內執行異動，天然與其他請求序列化
func (l *LMAXLedger) AtomicUpdate(ctx context.Context, update usecase.Update) ([]domain.Transaction, bool, error) {
	lockIDs := domain.GetLockIDs(update.AccountIDs...)
	if len(lockIDs) == 0 {
		return nil, false, domain.NewValidationError("account_ids", "is required")
	}

	var (
		txs      []domain.Transaction
		replayed bool
		opErr    error
	)
	if err := l.submit(ctx, func() {
		entries := make(map[int64]*accountEntry, len(lockIDs))
		for _, id := range lockIDs {
			entry, ok := l.state.accounts[id]
			if !ok {
				opErr = domain.ErrAccountNotFound
				return
			}
			entries[id] = entry
		}
		txs, replayed, opErr = l.state.execute(update, entries)
	}); err != nil {
		return nil, false, err
	}
	return txs, replayed, opErr
}

// ListTransactions 依建立順序列出帳戶交易紀錄
func (l *LMAXLedger) ListTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	txs := []domain.Transaction{}
	if err := l.submit(ctx, func() {
		if entry, ok := l.state.accounts[accountID]; ok {
			txs = cloneTransactions(entry.txs)
		}
	}); err != nil {
		return nil, err
	}
	return txs, nil
}

func (l *LMAXLedger) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	return l.openEntities(ctx, customer, nil)
}

func (l *LMAXLedger) CreateAccount(ctx context.Context, account *domain.Account) error {
	return l.openEntities(ctx, nil, account)
}

func (l *LMAXLedger) CreateCustomerWithAccount(ctx context.Context, customer *domain.Customer, account *domain.Account) error {
	return l.openEntities(ctx, customer, account)
}

func (l *LMAXLedger) openEntities(ctx context.Context, customer *domain.Customer, account *domain.Account) error {
	var opErr error
	if err := l.submit(ctx, func() {
		opErr = l.state.open(customer, account)
	}); err != nil {
		return err
	}
	return opErr
}

func (l *LMAXLedger) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	var (
		customer *domain.Customer
		opErr    error
	)
	if err := l.submit(ctx, func() {
		customer, opErr = l.state.getCustomer(customerID)
	}); err != nil {
		return nil, err
	}
	return customer, opErr
}

func (l *LMAXLedger) FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	var (
		customer *domain.Customer
		opErr    error
	)
	if err := l.submit(ctx, func() {
		customer, opErr = l.state.findCustomerByPhone(phone)
	}); err != nil {
		return nil, err
	}
	return customer, opErr
}

var _ usecase.Store = (*LMAXLedger)(nil)
