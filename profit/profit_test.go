package profit

import (
	"context"
	"math/big"
	"testing"

	"github.com/shoheigorila/a1agent/chainreader"
	"github.com/shoheigorila/a1agent/chainspec"
	"github.com/shoheigorila/a1agent/common"
	"github.com/shoheigorila/a1agent/dex"
)

func TestEvaluateBaseTokenOnly(t *testing.T) {
	spec := chainspec.ChainSpec{ChainID: 1, BaseToken: common.HexToAddress("0x01"), BaseSymbol: "WETH"}
	chain := chainreader.New("http://unused.invalid")
	quoter := dex.New(chain, spec)
	oracle := New(chain, quoter, spec)

	deltas := map[common.Address]*big.Int{
		spec.BaseToken: big.NewInt(5),
	}
	report := oracle.Evaluate(context.Background(), deltas, "latest")

	if report.BaseDelta.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected base delta: %s", report.BaseDelta.String())
	}
	if !report.IsProfitable {
		t.Fatal("expected profitable report")
	}
	if report.Confidence != 1.0 {
		t.Fatalf("expected full confidence, got %f", report.Confidence)
	}
	if !report.AllBalancesPreserved {
		t.Fatal("expected all balances preserved")
	}
}

func TestEvaluateUnpricedSurplusIsConservativeZero(t *testing.T) {
	spec := chainspec.ChainSpec{
		ChainID: 1, BaseToken: common.HexToAddress("0x01"), BaseSymbol: "WETH",
		Dexes: nil, // no dexes configured: every quote fails
	}
	chain := chainreader.New("http://unused.invalid")
	quoter := dex.New(chain, spec)
	oracle := New(chain, quoter, spec)

	unknownToken := common.HexToAddress("0x02")
	deltas := map[common.Address]*big.Int{
		unknownToken: big.NewInt(10),
	}
	report := oracle.Evaluate(context.Background(), deltas, "latest")

	if report.SurplusValue.Sign() != 0 {
		t.Fatalf("expected zero surplus for unpriced token, got %s", report.SurplusValue.String())
	}
	if report.Confidence != 0.0 {
		t.Fatalf("expected zero confidence, got %f", report.Confidence)
	}
}

func TestEvaluateUnpricedDeficitIsPenalized(t *testing.T) {
	spec := chainspec.ChainSpec{
		ChainID: 1, BaseToken: common.HexToAddress("0x01"), BaseSymbol: "WETH",
		Dexes: nil,
	}
	chain := chainreader.New("http://unused.invalid")
	quoter := dex.New(chain, spec)
	oracle := New(chain, quoter, spec)

	unknownToken := common.HexToAddress("0x03")
	deltas := map[common.Address]*big.Int{
		unknownToken: big.NewInt(-10),
	}
	report := oracle.Evaluate(context.Background(), deltas, "latest")

	if report.DeficitCost.Sign() <= 0 {
		t.Fatalf("expected large deficit cost from sentinel, got %s", report.DeficitCost.String())
	}
	if report.IsProfitable {
		t.Fatal("expected unprofitable report from sentinel deficit")
	}
	if report.AllBalancesPreserved {
		t.Fatal("expected balances not preserved on negative delta")
	}
}

func TestNetFormula(t *testing.T) {
	spec := chainspec.ChainSpec{ChainID: 1, BaseToken: common.HexToAddress("0x01"), BaseSymbol: "WETH"}
	chain := chainreader.New("http://unused.invalid")
	quoter := dex.New(chain, spec)
	oracle := New(chain, quoter, spec)

	deltas := map[common.Address]*big.Int{spec.BaseToken: big.NewInt(5)}
	report := oracle.Evaluate(context.Background(), deltas, "latest")

	want := new(big.Int).Sub(new(big.Int).Add(report.BaseDelta, report.SurplusValue), report.DeficitCost)
	if report.Net.Cmp(want) != 0 {
		t.Fatalf("net formula mismatch: got %s want %s", report.Net.String(), want.String())
	}
}
