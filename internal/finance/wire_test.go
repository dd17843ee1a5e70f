package finance

import (
	"encoding/json"
	"testing"

	"finboard/internal/core"
)

func TestNumberUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		json string
		want float64
	}{
		{"number", `123.45`, 123.45},
		{"integer", `42`, 42},
		{"numeric string", `"123.45"`, 123.45},
		{"padded numeric string", `" 99.9 "`, 99.9},
		{"negative string", `"-10.5"`, -10.5},
		{"null", `null`, 0},
		{"empty string", `""`, 0},
		{"non-numeric string", `"abc"`, 0},
		{"boolean", `true`, 0},
		{"object", `{"v": 1}`, 0},
		{"infinity string", `"Inf"`, 0},
		{"nan string", `"NaN"`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Number
			if err := json.Unmarshal([]byte(tt.json), &n); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v, want nil", tt.json, err)
			}
			if n.Float() != tt.want {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.json, n.Float(), tt.want)
			}
		})
	}
}

func TestNumberMissingFieldIsZero(t *testing.T) {
	var raw rawBudget
	if err := json.Unmarshal([]byte(`{"id": 1, "nome": "Lazer"}`), &raw); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if raw.Limit.Float() != 0 || raw.CurrentSpend.Float() != 0 {
		t.Errorf("missing numerics = %v, %v, want 0, 0", raw.Limit, raw.CurrentSpend)
	}
}

func TestTolerantSliceNormalizesMalformedArrays(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantLen int
	}{
		{"valid array", `{"goals": [{"id": 1}]}`, 1},
		{"not an array", `{"goals": "oops"}`, 0},
		{"array of wrong shapes", `{"goals": [17, "x"]}`, 0},
		{"null", `{"goals": null}`, 0},
		{"missing", `{}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw rawOverview
			if err := json.Unmarshal([]byte(tt.json), &raw); err != nil {
				t.Fatalf("Unmarshal error = %v", err)
			}
			if len(raw.Goals) != tt.wantLen {
				t.Errorf("len(Goals) = %d, want %d", len(raw.Goals), tt.wantLen)
			}
		})
	}
}

func TestMapOverviewNeverReturnsNilSlices(t *testing.T) {
	overview := mapOverview(rawOverview{})
	if overview.MonthlyBalance == nil {
		t.Error("MonthlyBalance = nil, want empty slice")
	}
	if overview.Goals == nil {
		t.Error("Goals = nil, want empty slice")
	}
	if overview.Activities == nil {
		t.Error("Activities = nil, want empty slice")
	}
}

func TestMapAccountRejectsUnknownKind(t *testing.T) {
	_, err := mapAccount(rawAccount{ID: 1, Name: "x", Kind: "BITCOIN"})
	if err == nil {
		t.Fatal("mapAccount() with unknown kind succeeded")
	}

	account, err := mapAccount(rawAccount{ID: 1, Name: "x", Kind: "CARTAO_CREDITO", Balance: Number(12.5)})
	if err != nil {
		t.Fatalf("mapAccount() error = %v", err)
	}
	if account.Kind != core.AccountCreditCard {
		t.Errorf("Kind = %v, want %v", account.Kind, core.AccountCreditCard)
	}
	if account.Balance != 12.5 {
		t.Errorf("Balance = %v, want 12.5", account.Balance)
	}
}
