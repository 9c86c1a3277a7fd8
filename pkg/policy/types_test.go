package policy

import (
	"encoding/json"
	"testing"
)

func TestEffect_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Effect
		wantErr bool
	}{
		{name: "allow", input: `{"id":"p1","effect":"allow"}`, want: EffectAllow},
		{name: "deny", input: `{"id":"p1","effect":"deny"}`, want: EffectDeny},
		{name: "absent", input: `{"id":"p1"}`, want: ""},
		{name: "null", input: `{"id":"p1","effect":null}`, want: ""},
		{name: "unknown value", input: `{"id":"p1","effect":"maybe"}`, wantErr: true},
		{name: "wrong case", input: `{"id":"p1","effect":"Allow"}`, wantErr: true},
		{name: "not a string", input: `{"id":"p1","effect":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Policy
			err := json.Unmarshal([]byte(tt.input), &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && p.Effect != tt.want {
				t.Errorf("Effect = %q, want %q", p.Effect, tt.want)
			}
		})
	}
}

func TestEffect_NullAndAbsentDecodeAlike(t *testing.T) {
	var withNull, absent Policy
	if err := json.Unmarshal([]byte(`{"id":"p1","effect":null}`), &withNull); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"id":"p1"}`), &absent); err != nil {
		t.Fatal(err)
	}
	if withNull.Effect != absent.Effect {
		t.Errorf("null effect = %q, absent effect = %q", withNull.Effect, absent.Effect)
	}
}
