package model

import (
	"encoding/json"
	"testing"
)

func TestValueJSONRoundTrip(t *testing.T) {
	cases := []Value{
		StrValue("hello"),
		U64Value(42),
		I64Value(-7),
		BoolValue(true),
		Null,
	}
	for _, v := range cases {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %v: %v", v, err)
		}
		var got Value
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if got != v {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, v)
		}
	}
}

func TestValueTypeName(t *testing.T) {
	if StrValue("x").TypeName() != "str" {
		t.Fatal("expected str")
	}
	if U64Value(1).TypeName() != "u64" {
		t.Fatal("expected u64")
	}
	if Null.TypeName() != "null" {
		t.Fatal("expected null")
	}
}
