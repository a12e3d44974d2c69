package usecase

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// PINChecker 負責 PIN 的雜湊與驗證
type PINChecker interface {
	// HashPIN 建立帳戶時將 PIN 轉為可儲存的雜湊
	HashPIN(pin string) (string, error)
	// CheckPIN 比對 PIN，不符合時回傳 false (不回傳錯誤)
	CheckPIN(account *domain.Account, pin string) bool
}

// BcryptPINs 以 bcrypt 儲存 PIN；比對為常數時間
type BcryptPINs struct {
	cost int
}

// NewBcryptPINs cost 超出 bcrypt 範圍時使用 bcrypt.DefaultCost
func NewBcryptPINs(cost int) *BcryptPINs {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPINs{cost: cost}
}

func (b *BcryptPINs) HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b *BcryptPINs) CheckPIN(account *domain.Account, pin string) bool {
	if account == nil || account.PINHash == "" || pin == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(account.PINHash), []byte(pin)) == nil
}

var _ PINChecker = (*BcryptPINs)(nil)
