package backtest

import (
	"strings"

	"skoll/internal/market"
)

// Account tracks the user's balance per market and the set of venues the
// backtest trades on. Balances are quote-currency buying power.
type Account struct {
	balances  map[market.MarketType]float64
	exchanges []*market.Exchange
}

// NewAccount loads the exchange configuration and seeds the two balances.
func NewAccount(spot, futures float64, configPath string) (*Account, error) {
	exchanges, err := market.LoadExchanges(configPath)
	if err != nil {
		return nil, err
	}
	return &Account{
		balances: map[market.MarketType]float64{
			market.Spot:    spot,
			market.Futures: futures,
		},
		exchanges: exchanges,
	}, nil
}

func (a *Account) Balance(mt market.MarketType) float64 {
	return a.balances[mt]
}

func (a *Account) UpdateBalance(mt market.MarketType, delta float64) {
	a.balances[mt] += delta
}

// Balances returns a copy of the per-market balances, suitable for seeding
// a later Clear.
func (a *Account) Balances() map[market.MarketType]float64 {
	out := make(map[market.MarketType]float64, len(a.balances))
	for mt, bal := range a.balances {
		out[mt] = bal
	}
	return out
}

func (a *Account) Exchanges() []*market.Exchange {
	return a.exchanges
}

// FindExchange resolves a venue by name, case insensitively.
func (a *Account) FindExchange(name string) *market.Exchange {
	for _, ex := range a.exchanges {
		if strings.EqualFold(ex.Name(), name) {
			return ex
		}
	}
	return nil
}

// Clear resets the balances to the given initial figures.
func (a *Account) Clear(initial map[market.MarketType]float64) {
	a.balances = make(map[market.MarketType]float64, len(initial))
	for mt, bal := range initial {
		a.balances[mt] = bal
	}
}
