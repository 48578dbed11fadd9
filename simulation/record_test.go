package simulation

import (
	"testing"

	"aesthetisim/core"
)

func TestNewRecord(t *testing.T) {
	rec := NewRecord("patient-1", core.InterventionLips, 2.5)

	if rec.ID == "" {
		t.Error("record id is empty")
	}
	if rec.Status != StatusPending {
		t.Errorf("status = %s, want pending", rec.Status)
	}
	if rec.Parameters == nil {
		t.Error("parameters map is nil")
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
	if rec.CompletedAt != nil {
		t.Error("new record has a completion time")
	}

	other := NewRecord("patient-1", core.InterventionLips, 2.5)
	if other.ID == rec.ID {
		t.Error("two records share an id")
	}
}

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		status   Status
		valid    bool
		terminal bool
	}{
		{StatusPending, true, false},
		{StatusProcessing, true, false},
		{StatusCompleted, true, true},
		{StatusFailed, true, true},
		{Status("queued"), false, false},
		{Status(""), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.status.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestParametersRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
	}{
		{"nil map", nil},
		{"empty map", map[string]string{}},
		{"populated", map[string]string{
			ParamSeed:     "42",
			ParamBackend:  "synthetic",
			ParamFallback: "false",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeParameters(tt.params)
			if err != nil {
				t.Fatalf("EncodeParameters: %v", err)
			}

			decoded, err := DecodeParameters(encoded)
			if err != nil {
				t.Fatalf("DecodeParameters: %v", err)
			}
			if decoded == nil {
				t.Fatal("decoded map is nil")
			}

			want := tt.params
			if want == nil {
				want = map[string]string{}
			}
			if len(decoded) != len(want) {
				t.Fatalf("decoded %d entries, want %d", len(decoded), len(want))
			}
			for k, v := range want {
				if decoded[k] != v {
					t.Errorf("decoded[%q] = %q, want %q", k, decoded[k], v)
				}
			}
		})
	}
}

func TestDecodeParametersEmptyString(t *testing.T) {
	params, err := DecodeParameters("")
	if err != nil {
		t.Fatalf("DecodeParameters(\"\"): %v", err)
	}
	if params == nil || len(params) != 0 {
		t.Errorf("got %v, want empty map", params)
	}
}

func TestDecodeParametersInvalid(t *testing.T) {
	if _, err := DecodeParameters("{not json"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestIsFallback(t *testing.T) {
	rec := NewRecord("p", core.InterventionLips, 1)
	if rec.IsFallback() {
		t.Error("new record reports fallback")
	}
	rec.Parameters[ParamFallback] = "true"
	if !rec.IsFallback() {
		t.Error("fallback flag not detected")
	}
}
