package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexString 接受 JSON 字串或數字，金額與 PIN 兩種寫法都可以
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("must be a string or number")
	}
	*s = flexString(num.String())
	return nil
}

// flexID 接受 JSON 數字或數字字串
type flexID int64

func (id *flexID) UnmarshalJSON(data []byte) error {
	var raw flexString
	if err := raw.UnmarshalJSON(data); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a positive integer")
	}
	*id = flexID(n)
	return nil
}

type customerBody struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type accountBody struct {
	PIN  flexString `json:"pin"`
	Type string     `json:"type"`
}

type createAccountWithCustomerBody struct {
	Customer *customerBody `json:"customer"`
	Account  *accountBody  `json:"account"`
}

type depositBody struct {
	AccountID flexID     `json:"accountId"`
	Amount    flexString `json:"amount"`
	PIN       flexString `json:"pin"`
}

type transferBody struct {
	SenderID   flexID     `json:"sender_account"`
	ReceiverID flexID     `json:"receiver_account"`
	Amount     flexString `json:"amount"`
	PIN        flexString `json:"pin"`
}
