package money

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Amount
		wantErr bool
	}{
		{input: "30", want: 3000},
		{input: "30.5", want: 3050},
		{input: "30.50", want: 3050},
		{input: " 0.01 ", want: 1},
		{input: "100.000", want: 10000},
		{input: "-5.25", want: -525},
		{input: "1.005", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
		{input: "1e30", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	tests := map[Amount]string{
		0:     "0.00",
		1:     "0.01",
		3000:  "30.00",
		-525:  "-5.25",
		12345: "123.45",
	}
	for amount, want := range tests {
		if got := amount.String(); got != want {
			t.Errorf("Amount(%d).String() = %q, want %q", int64(amount), got, want)
		}
	}
}

func TestMulBps(t *testing.T) {
	tests := []struct {
		amount Amount
		bps    uint32
		want   Amount
	}{
		{3000, 5000, 1500},
		{3001, 5000, 1500},
		{1, 5000, 0},
		{9999, 10000, 9999},
		{9999, 0, 0},
		{100, 3333, 33},
	}
	for _, tt := range tests {
		if got := tt.amount.MulBps(tt.bps); got != tt.want {
			t.Errorf("Amount(%d).MulBps(%d) = %d, want %d", int64(tt.amount), tt.bps, got, tt.want)
		}
	}
}

func TestJSON(t *testing.T) {
	var payload struct {
		Price Amount `json:"price"`
	}
	if err := json.Unmarshal([]byte(`{"price":"30.00"}`), &payload); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if payload.Price != 3000 {
		t.Errorf("expected 3000, got %d", payload.Price)
	}

	if err := json.Unmarshal([]byte(`{"price":12.5}`), &payload); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if payload.Price != 1250 {
		t.Errorf("expected 1250, got %d", payload.Price)
	}

	if err := json.Unmarshal([]byte(`{"price":"1.234"}`), &payload); err == nil {
		t.Error("expected error for three decimal places")
	}

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"price":"12.50"}` {
		t.Errorf("unexpected encoding %s", out)
	}
}
