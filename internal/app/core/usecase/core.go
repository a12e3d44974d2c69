package usecase

import (
	"context"
	"log/slog"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層
//
// 所有外部 adapter (gRPC / HTTP) 都只透過這裡的操作存取帳本，
// 回傳的錯誤可用 domain.KindOf 分類。
type CoreUseCase struct {
	store  Store
	pins   PINChecker
	logger *slog.Logger
}

func NewCoreUseCase(store Store, pins PINChecker, logger *slog.Logger) *CoreUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoreUseCase{
		store:  store,
		pins:   pins,
		logger: logger,
	}
}

// authorize 載入帳戶並驗證 PIN
func (c *CoreUseCase) authorize(ctx context.Context, accountID int64, pin string) (*domain.Account, error) {
	account, err := c.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !c.pins.CheckPIN(account, pin) {
		return nil, domain.ErrInvalidPIN
	}
	return account, nil
}

// logOutcome 成功記 Info；業務拒絕記 Info；儲存或未預期錯誤記 Error
func (c *CoreUseCase) logOutcome(ctx context.Context, op string, err error, attrs ...any) {
	if err == nil {
		c.logger.InfoContext(ctx, op+" completed", attrs...)
		return
	}
	kind := domain.KindOf(err)
	attrs = append(attrs, slog.String("kind", kind.String()), slog.Any("error", err))
	switch kind {
	case domain.KindStore, domain.KindInternal:
		c.logger.ErrorContext(ctx, op+" failed", attrs...)
	default:
		c.logger.InfoContext(ctx, op+" rejected", attrs...)
	}
}
