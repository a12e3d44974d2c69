package grpc

import (
	"math"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

func TestFieldsID(t *testing.T) {
	tests := []struct {
		name    string
		value   *structpb.Value
		want    int64
		wantErr bool
	}{
		{"number", structpb.NewNumberValue(42), 42, false},
		{"numeric string", structpb.NewStringValue(" 7 "), 7, false},
		{"empty string", structpb.NewStringValue(""), 0, false},
		{"null", structpb.NewNullValue(), 0, false},
		{"fraction", structpb.NewNumberValue(1.5), 0, true},
		{"negative", structpb.NewNumberValue(-1), 0, true},
		{"two to the 63", structpb.NewNumberValue(math.Pow(2, 63)), 0, true},
		{"beyond int64", structpb.NewNumberValue(1e19), 0, true},
		{"largest exact float", structpb.NewNumberValue(1 << 53), 1 << 53, false},
		{"not a number", structpb.NewBoolValue(true), 0, true},
		{"bad string", structpb.NewStringValue("abc"), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFields(object(map[string]*structpb.Value{"id": tt.value}))
			got := f.id("id")
			if gotErr := f.err() != nil; gotErr != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", f.err(), tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("id = %d, want %d", got, tt.want)
			}
		})
	}
}
