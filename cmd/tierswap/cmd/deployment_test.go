package cmd_test

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/redesblock/tierswap/cmd/tierswap/cmd"
)

func TestParseRatios(t *testing.T) {
	got, err := cmd.ParseRatios([]string{"1, 3", "5"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []uint64{1, 3, 5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if _, err := cmd.ParseRatios([]string{"1,-3,5"}); err == nil {
		t.Fatal("expected error for negative ratio")
	}
}

func TestParseEnabled(t *testing.T) {
	got, err := cmd.ParseEnabled([]string{"True,off", "1"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []bool{true, false, true}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestStrToBool(t *testing.T) {
	for _, s := range []string{"y", "YES", "t", "True", "on", "1"} {
		if v, err := cmd.StrToBool(s); err != nil || !v {
			t.Errorf("%q: got %v, %v", s, v, err)
		}
	}
	for _, s := range []string{"n", "No", "f", "FALSE", "off", "0"} {
		if v, err := cmd.StrToBool(s); err != nil || v {
			t.Errorf("%q: got %v, %v", s, v, err)
		}
	}
	for _, s := range []string{"", "2", "enabled"} {
		if _, err := cmd.StrToBool(s); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
}

func TestScaleWholeTokens(t *testing.T) {
	got, err := cmd.ScaleWholeTokens("10", 18)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := new(big.Int).SetString("10000000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", got, want)
	}

	got, err = cmd.ScaleWholeTokens("7", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Int64() != 7 {
		t.Fatalf("got %s, want 7", got)
	}

	for _, s := range []string{"", "1.5", "-1", "ten"} {
		if _, err := cmd.ScaleWholeTokens(s, 18); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
}
