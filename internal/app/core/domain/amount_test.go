package domain

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr string
	}{
		{raw: "100", want: "100"},
		{raw: " 0.0001 ", want: "0.0001"},
		{raw: "12.3400", want: "12.34"},
		{raw: "", wantErr: "is required"},
		{raw: "abc", wantErr: "must be a number"},
		{raw: "0", wantErr: "amount must be positive"},
		{raw: "-5", wantErr: "amount must be positive"},
		{raw: "1.00001", wantErr: "must have at most 4 decimal places"},
		{raw: "1.00000", want: "1"},
		{raw: "9999999999999999.9999", want: "9999999999999999.9999"},
		{raw: "10000000000000000", wantErr: "must not exceed 9999999999999999.9999"},
		{raw: "1e30", wantErr: "must not exceed 9999999999999999.9999"},
		{raw: "1e2000000000", wantErr: "must not exceed 9999999999999999.9999"},
		{raw: "1e-2000000000", wantErr: "must have at most 4 decimal places"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount("amount", tt.raw)
			if tt.wantErr != "" {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("err = %v, want ValidationError", err)
				}
				if verr.Fields["amount"] != tt.wantErr {
					t.Fatalf("reason = %q, want %q", verr.Fields["amount"], tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("ParseAmount(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}
