package domain

import (
	"strings"
	"time"
)

// Customer 客戶資料，一個客戶可擁有多個帳戶
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizePhone 電話查詢用的正規化 (去除前後空白、不分大小寫)
func NormalizePhone(phone string) string {
	return strings.ToLower(strings.TrimSpace(phone))
}
