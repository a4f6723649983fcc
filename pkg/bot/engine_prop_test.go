package bot

import (
	"math/big"
	"testing"

	"pgregory.net/rapid"
)

// The budget is a hard lifetime cap: no execution sequence can spend past it,
// every purchase is clamped to the per-interval amount, and an order with a
// positive budget terminates exactly when the cap is reached.
func TestBudgetInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		budget := rapid.Int64Range(1, 1_000_000).Draw(t, "budget")
		amount := rapid.Int64Range(1, 200_000).Draw(t, "amount")
		price := rapid.Int64Range(0, 1_000_000_000).Draw(t, "price")

		mgr := &fakeManager{
			borrower: testOwner,
			oracle:   &fakeOracle{price: big.NewInt(price)},
			facade:   &fakeFacade{},
		}
		e := NewEngine(Config{QuoteToken: testQuote, Domain: testDomain()})
		e.RegisterManager(testManager, mgr)
		clock := &testClock{now: 1_700_000_000}
		e.SetNowFunc(clock.fn())

		o := validOrder()
		o.Budget = big.NewInt(budget)
		o.AmountPerInterval = big.NewInt(amount)
		id, err := e.SubmitOrder(testOwner, o)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}

		total := big.NewInt(0)
		for i := 0; ; i++ {
			res, err := e.ExecuteOrder(testExecutor, id)
			if err != nil {
				t.Fatalf("execute %d: %v", i, err)
			}
			if res.Spent.Cmp(big.NewInt(amount)) > 0 {
				t.Fatalf("spend %s exceeds per-interval amount %d", res.Spent, amount)
			}
			total.Add(total, res.Spent)
			if total.Cmp(big.NewInt(budget)) > 0 {
				t.Fatalf("total spent %s exceeds budget %d", total, budget)
			}
			if res.Completed {
				break
			}
			clock.now += o.Interval
			if i > int(budget/amount)+2 {
				t.Fatalf("order did not complete within expected executions")
			}
		}

		if total.Cmp(big.NewInt(budget)) != 0 {
			t.Fatalf("completed order spent %s, want exactly %d", total, budget)
		}
	})
}
