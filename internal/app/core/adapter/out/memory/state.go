package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// WAL 紀錄類型
const (
	recordOpen   = "open"   // 建立客戶及/或帳戶
	recordCommit = "commit" // 一次原子異動 (餘額 + 交易紀錄)
)

// walRecord WAL 內的一筆紀錄
type walRecord struct {
	Kind     string           `json:"kind"`
	Customer *domain.Customer `json:"customer,omitempty"`
	Account  *domain.Account  `json:"account,omitempty"`
	// domain.Account 不輸出 PIN 雜湊，這裡另外保存
	PINHash      string                    `json:"pin_hash,omitempty"`
	Balances     map[int64]decimal.Decimal `json:"balances,omitempty"`
	Transactions []domain.Transaction      `json:"transactions,omitempty"`
	Reference    uuid.UUID                 `json:"reference"`
}

// accountEntry 單一帳戶的狀態與其交易紀錄，mu 保護 account 與 txs
type accountEntry struct {
	mu      sync.Mutex
	account domain.Account
	txs     []domain.Transaction
}

// state 兩種記憶體帳本共用的資料與套用邏輯，本身不處理 map 的並發
//
// 結構:
//
//	customers / phones / accounts: 由呼叫端負責同步
//	processed: 已處理過的冪等鍵，processedMu 保護
//	inflight: 正在執行中的冪等鍵，同樣由 processedMu 保護
//	lastTransactionID: 交易 ID 由多個帳戶鎖內同時分配，使用 atomic
type state struct {
	customers map[int64]*domain.Customer
	phones    map[string][]int64
	accounts  map[int64]*accountEntry

	processedMu sync.Mutex
	processed   map[uuid.UUID][]domain.Transaction
	inflight    map[uuid.UUID]struct{}

	lastCustomerID    int64
	lastAccountID     int64
	lastTransactionID atomic.Int64

	wal *wal.WAL
	now func() time.Time
}

func newState(w *wal.WAL) *state {
	return &state{
		customers: make(map[int64]*domain.Customer),
		phones:    make(map[string][]int64),
		accounts:  make(map[int64]*accountEntry),
		processed: make(map[uuid.UUID][]domain.Transaction),
		inflight:  make(map[uuid.UUID]struct{}),
		wal:       w,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態 (單執行緒，無需 Lock)
func (s *state) recoverFromWAL() error {
	if s.wal == nil {
		return nil
	}
	return s.wal.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		return s.replay(&rec)
	})
}

func (s *state) replay(rec *walRecord) error {
	switch rec.Kind {
	case recordOpen:
		if rec.Account != nil {
			rec.Account.PINHash = rec.PINHash
		}
		s.applyOpen(rec.Customer, rec.Account)
	case recordCommit:
		entries := make(map[int64]*accountEntry, len(rec.Balances))
		for id := range rec.Balances {
			entry, ok := s.accounts[id]
			if !ok {
				return fmt.Errorf("wal commit references unknown account %d", id)
			}
			entries[id] = entry
		}
		s.applyCommit(entries, rec.Balances, rec.Transactions, rec.Reference)
		for _, tx := range rec.Transactions {
			if tx.ID > s.lastTransactionID.Load() {
				s.lastTransactionID.Store(tx.ID)
			}
		}
	default:
		return fmt.Errorf("unknown wal record kind %q", rec.Kind)
	}
	return nil
}

// log 先寫入 WAL 再套用狀態
func (s *state) log(rec *walRecord) error {
	if s.wal == nil {
		return nil
	}
	if err := s.wal.Write(rec); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
	}
	return nil
}

// open 分配 ID、寫入 WAL 並建立客戶及/或帳戶
// 呼叫端需持有 map 的寫入鎖
func (s *state) open(customer *domain.Customer, account *domain.Account) error {
	now := s.now()
	var newCustomer domain.Customer
	if customer != nil {
		newCustomer = *customer
		newCustomer.ID = s.lastCustomerID + 1
		newCustomer.CreatedAt = now
	}
	var newAccount domain.Account
	if account != nil {
		newAccount = *account
		newAccount.ID = s.lastAccountID + 1
		newAccount.CreatedAt = now
		if customer != nil {
			newAccount.CustomerID = newCustomer.ID
		} else if _, ok := s.customers[newAccount.CustomerID]; !ok {
			return domain.ErrCustomerNotFound
		}
	}

	rec := &walRecord{Kind: recordOpen}
	if customer != nil {
		rec.Customer = &newCustomer
	}
	if account != nil {
		rec.Account = &newAccount
		rec.PINHash = newAccount.PINHash
	}
	if err := s.log(rec); err != nil {
		return err
	}

	s.applyOpen(rec.Customer, rec.Account)
	if customer != nil {
		*customer = newCustomer
	}
	if account != nil {
		*account = newAccount
	}
	return nil
}

func (s *state) applyOpen(customer *domain.Customer, account *domain.Account) {
	if customer != nil {
		c := *customer
		s.customers[c.ID] = &c
		key := domain.NormalizePhone(c.Phone)
		s.phones[key] = append(s.phones[key], c.ID)
		if c.ID > s.lastCustomerID {
			s.lastCustomerID = c.ID
		}
	}
	if account != nil {
		s.accounts[account.ID] = &accountEntry{account: *account}
		if account.ID > s.lastAccountID {
			s.lastAccountID = account.ID
		}
	}
}

// execute 執行一次原子異動；呼叫端需已持有 entries 中所有帳戶的鎖
func (s *state) execute(update usecase.Update, entries map[int64]*accountEntry) ([]domain.Transaction, bool, error) {
	if update.Reference != uuid.Nil {
		prior, ok, err := s.reserve(update.Reference)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return prior, true, nil
		}
		defer s.release(update.Reference)
	}

	copies := make(map[int64]*domain.Account, len(entries))
	for id, entry := range entries {
		account := entry.account
		copies[id] = &account
	}
	txs, err := update.Apply(copies)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	for i := range txs {
		if _, ok := copies[txs[i].AccountID]; !ok {
			return nil, false, fmt.Errorf("transaction for unlocked account %d", txs[i].AccountID)
		}
		txs[i].ID = s.lastTransactionID.Add(1)
		txs[i].Reference = update.Reference
		txs[i].CreatedAt = now
	}
	balances := make(map[int64]decimal.Decimal, len(copies))
	for id, account := range copies {
		balances[id] = account.Balance
	}

	if err := s.log(&walRecord{
		Kind:         recordCommit,
		Balances:     balances,
		Transactions: txs,
		Reference:    update.Reference,
	}); err != nil {
		return nil, false, err
	}
	s.applyCommit(entries, balances, txs, update.Reference)
	return cloneTransactions(txs), false, nil
}

func (s *state) applyCommit(entries map[int64]*accountEntry, balances map[int64]decimal.Decimal, txs []domain.Transaction, ref uuid.UUID) {
	for id, balance := range balances {
		entries[id].account.Balance = balance
	}
	for _, tx := range txs {
		entry := entries[tx.AccountID]
		entry.txs = append(entry.txs, tx)
	}
	if ref != uuid.Nil {
		s.processedMu.Lock()
		s.processed[ref] = cloneTransactions(txs)
		s.processedMu.Unlock()
	}
}

// reserve 已處理過的冪等鍵回傳先前的交易；否則標記為執行中
//
// 帳戶鎖只序列化涉及相同帳戶的異動，同一個冪等鍵用在不相交的帳戶上
// 只能靠這裡擋下，後到的一方視為被其他操作使用。
func (s *state) reserve(ref uuid.UUID) ([]domain.Transaction, bool, error) {
	s.processedMu.Lock()
	defer s.processedMu.Unlock()
	if txs, ok := s.processed[ref]; ok {
		return cloneTransactions(txs), true, nil
	}
	if _, busy := s.inflight[ref]; busy {
		return nil, false, domain.NewValidationError("reference", "already used by a different operation")
	}
	s.inflight[ref] = struct{}{}
	return nil, false, nil
}

// release 異動結束 (成功已寫入 processed，失敗則可再次使用)
func (s *state) release(ref uuid.UUID) {
	s.processedMu.Lock()
	delete(s.inflight, ref)
	s.processedMu.Unlock()
}

// findCustomerByPhone 多筆相同電話時回傳 ID 最小者
func (s *state) findCustomerByPhone(phone string) (*domain.Customer, error) {
	ids := s.phones[domain.NormalizePhone(phone)]
	if len(ids) == 0 {
		return nil, domain.ErrCustomerNotFound
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	c := *s.customers[sorted[0]]
	return &c, nil
}

func (s *state) getCustomer(customerID int64) (*domain.Customer, error) {
	customer, ok := s.customers[customerID]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	c := *customer
	return &c, nil
}

func cloneTransactions(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	return out
}

// ErrLedgerStopped LMAXLedger 的事件迴圈已停止
var ErrLedgerStopped = errors.New("ledger event loop stopped")
