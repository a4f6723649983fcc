package gear

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	simBorrower = common.HexToAddress("0x1111111111111111111111111111111111111111")
	simAccount  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	simUSDC     = common.HexToAddress("0x00000000000000000000000000000000000000C0")
	simWETH     = common.HexToAddress("0x00000000000000000000000000000000000000E0")
)

func TestSimManagerBorrower(t *testing.T) {
	m := NewSimManager()

	if _, err := m.Borrower(simAccount); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("err = %v, want ErrUnknownAccount", err)
	}

	m.OpenAccount(simAccount, simBorrower)
	b, err := m.Borrower(simAccount)
	if err != nil {
		t.Fatalf("Borrower: %v", err)
	}
	if b != simBorrower {
		t.Fatalf("borrower = %s", b.Hex())
	}

	m.CloseAccount(simAccount)
	if _, err := m.Borrower(simAccount); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("after close: err = %v, want ErrUnknownAccount", err)
	}
	if _, err := m.PriceOracle(simAccount); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("oracle for closed account: err = %v", err)
	}
	if _, err := m.Facade(simAccount); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("facade for closed account: err = %v", err)
	}
}

func TestSimOracleConvert(t *testing.T) {
	m := NewSimManager()
	m.OpenAccount(simAccount, simBorrower)
	m.SetRate(simUSDC, simWETH, big.NewInt(500_000_000), big.NewInt(1))

	oracle, err := m.PriceOracle(simAccount)
	if err != nil {
		t.Fatalf("PriceOracle: %v", err)
	}

	out, err := oracle.Convert(big.NewInt(1_000_000), simUSDC, simWETH)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if want := big.NewInt(500_000_000_000_000); out.Cmp(want) != 0 {
		t.Fatalf("Convert = %s, want %s", out, want)
	}

	if _, err := oracle.Convert(big.NewInt(1), simWETH, simUSDC); err == nil {
		t.Fatal("missing reverse rate did not fail")
	}

	// Fractional rate truncates toward zero.
	m.SetRate(simWETH, simUSDC, big.NewInt(1), big.NewInt(3))
	out, err = oracle.Convert(big.NewInt(10), simWETH, simUSDC)
	if err != nil {
		t.Fatalf("Convert fractional: %v", err)
	}
	if out.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("Convert fractional = %s, want 3", out)
	}
}

func TestSimFacadeExecuteSwap(t *testing.T) {
	m := NewSimManager()
	m.OpenAccount(simAccount, simBorrower)
	m.SetRate(simUSDC, simWETH, big.NewInt(2), big.NewInt(1))

	facade, err := m.Facade(simAccount)
	if err != nil {
		t.Fatalf("Facade: %v", err)
	}

	call := SwapCall{
		TokenIn:      simUSDC,
		TokenOut:     simWETH,
		Recipient:    simAccount,
		AmountIn:     big.NewInt(100),
		MinAmountOut: big.NewInt(200),
	}
	out, err := facade.ExecuteSwap(simAccount, call)
	if err != nil {
		t.Fatalf("ExecuteSwap: %v", err)
	}
	if out.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("received = %s, want 200", out)
	}

	call.MinAmountOut = big.NewInt(201)
	if _, err := facade.ExecuteSwap(simAccount, call); !errors.Is(err, ErrInsufficientOutput) {
		t.Fatalf("err = %v, want ErrInsufficientOutput", err)
	}
}

func TestMemoryPermissions(t *testing.T) {
	bot := common.HexToAddress("0x3333333333333333333333333333333333333333")
	mgr := common.HexToAddress("0x5555555555555555555555555555555555555555")

	p := NewMemoryPermissions()
	if ok, _ := p.HasExternalCallPermission(bot, mgr, simAccount); ok {
		t.Fatal("permission granted by default")
	}
	p.Grant(bot, mgr, simAccount)
	if ok, _ := p.HasExternalCallPermission(bot, mgr, simAccount); !ok {
		t.Fatal("granted permission not visible")
	}
	// Grants are scoped to the exact triple.
	if ok, _ := p.HasExternalCallPermission(bot, mgr, simBorrower); ok {
		t.Fatal("grant leaked to another account")
	}
	p.Revoke(bot, mgr, simAccount)
	if ok, _ := p.HasExternalCallPermission(bot, mgr, simAccount); ok {
		t.Fatal("revoked permission still granted")
	}
}
