package memory

import (
	"context"
	"sync"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	mu: 保護客戶/帳戶 map 的結構 (新增帳戶時取寫入鎖)
//	accountEntry.mu: 每個帳戶各自一把鎖，異動時依帳號遞增順序取得
//
// 涉及相同帳戶的異動互相排隊；不相交的帳戶可同時進行。
type MutexLedger struct {
	mu    sync.RWMutex
	state *state
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	wal: Write-Ahead Log 實例 (nil 代表不持久化)
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(w *wal.WAL) (*MutexLedger, error) {
	ledger := &MutexLedger{state: newState(w)}
	if err := ledger.state.recoverFromWAL(); err != nil {
		return nil, domain.NewStoreError("recover from wal", err)
	}
	return ledger, nil
}

// GetAccount 取得指定帳戶目前狀態
func (m *MutexLedger) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	m.mu.RLock()
	entry, ok := m.state.accounts[accountID]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	entry.mu.Lock()
	account := entry.account
	entry.mu.Unlock()
	return &account, nil
}

// AtomicUpdate 處理一次原子異動 (Level 1: 每帳戶 Mutex)
//
// 參數:
//
//	ctx: 上下文
//	update: 涉及的帳號、冪等鍵與狀態轉換
//
// 回傳:
//
//	[]domain.Transaction: 寫入 (或先前已寫入) 的交易紀錄
//	bool: 是否為重送
//	error: 處理錯誤
func (m *MutexLedger) AtomicUpdate(ctx context.Context, update usecase.Update) ([]domain.Transaction, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, domain.NewStoreError("atomic update", err)
	}
	lockIDs := domain.GetLockIDs(update.AccountIDs...)
	if len(lockIDs) == 0 {
		return nil, false, domain.NewValidationError("account_ids", "is required")
	}

	ordered := make([]*accountEntry, 0, len(lockIDs))
	m.mu.RLock()
	for _, id := range lockIDs {
		entry, ok := m.state.accounts[id]
		if !ok {
			m.mu.RUnlock()
			return nil, false, domain.ErrAccountNotFound
		}
		ordered = append(ordered, entry)
	}
	m.mu.RUnlock()

	// 依帳號遞增順序上鎖，避免反向轉帳互相死鎖
	entries := make(map[int64]*accountEntry, len(ordered))
	for _, entry := range ordered {
		entry.mu.Lock()
		entries[entry.account.ID] = entry
	}
	defer func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			ordered[i].mu.Unlock()
		}
	}()

	return m.state.execute(update, entries)
}

// ListTransactions 依建立順序列出帳戶交易紀錄；帳戶不存在回傳空陣列
func (m *MutexLedger) ListTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	m.mu.RLock()
	entry, ok := m.state.accounts[accountID]
	m.mu.RUnlock()
	if !ok {
		return []domain.Transaction{}, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneTransactions(entry.txs), nil
}

func (m *MutexLedger) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.open(customer, nil)
}

func (m *MutexLedger) CreateAccount(ctx context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.open(nil, account)
}

// CreateCustomerWithAccount 客戶與帳戶寫在同一筆 WAL 紀錄，一起成功或一起失敗
func (m *MutexLedger) CreateCustomerWithAccount(ctx context.Context, customer *domain.Customer, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.open(customer, account)
}

func (m *MutexLedger) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getCustomer(customerID)
}

func (m *MutexLedger) FindCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.findCustomerByPhone(phone)
}

var _ usecase.Store = (*MutexLedger)(nil)
