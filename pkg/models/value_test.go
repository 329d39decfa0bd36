package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestValue_JSON(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{String("45.00"), `"45.00"`},
		{Number(0.12345678), `0.12345678`},
		{Number(61), `61`},
		{Null(), `null`},
		{Value{}, `null`},
	}
	for _, c := range cases {
		got, err := json.Marshal(c.v)
		if err != nil {
			t.Fatalf("marshal %v: %v", c.v, err)
		}
		if string(got) != c.want {
			t.Errorf("marshal %v = %s, want %s", c.v, got, c.want)
		}
	}

	if _, err := json.Marshal(Number(math.NaN())); err == nil {
		t.Error("expected NaN to be rejected")
	}
}

func TestValue_UnmarshalJSON(t *testing.T) {
	var row Row
	if err := json.Unmarshal([]byte(`{"a":"x","b":1.5,"c":null}`), &row); err != nil {
		t.Fatal(err)
	}
	if s, ok := row["a"].Str(); !ok || s != "x" {
		t.Errorf("a = %v", row["a"])
	}
	if n, ok := row["b"].Num(); !ok || n != 1.5 {
		t.Errorf("b = %v", row["b"])
	}
	if !row["c"].IsNull() {
		t.Errorf("c = %v", row["c"])
	}

	var v Value
	if err := json.Unmarshal([]byte(`true`), &v); err == nil {
		t.Error("expected booleans to be rejected")
	}
}
