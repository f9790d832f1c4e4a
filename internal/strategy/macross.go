package strategy

import (
	"math"

	"github.com/rs/zerolog/log"

	"skoll/internal/engine"
	"skoll/internal/market"
)

// Candlestick is one fixed-interval OHLCV bar aggregated from trade prints.
type Candlestick struct {
	OpenAt int64 // bucket open, nanoseconds since epoch
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// BalanceFunc reports the account balance available in a market, used for
// position sizing.
type BalanceFunc func(market.MarketType) float64

// MovingAverageCross is the sample strategy: it aggregates trades into
// candles and trades simple moving-average crossovers. A bullish cross goes
// long 3% of the market's balance; a bearish cross goes short the same,
// flipping any open position by adding its absolute size.
type MovingAverageCross struct {
	PositionTracker

	candlePeriod int64 // candle length in nanoseconds
	shortLen     int
	longLen      int

	arena   *engine.Arena
	balance BalanceFunc

	candles  []Candlestick
	nextOpen int64
}

// NewMovingAverageCross builds the strategy. candleSeconds is the bar
// interval; shortLen and longLen are the two moving-average windows in bars.
func NewMovingAverageCross(arena *engine.Arena, balance BalanceFunc, candleSeconds, shortLen, longLen int) *MovingAverageCross {
	return &MovingAverageCross{
		candlePeriod: int64(candleSeconds) * int64(1e9),
		shortLen:     shortLen,
		longLen:      longLen,
		arena:        arena,
		balance:      balance,
	}
}

func (m *MovingAverageCross) Clear() {
	m.candles = nil
	m.nextOpen = 0
	m.ClearPositions()
}

func (m *MovingAverageCross) OnTrade(ev TradeEvent) []*engine.Order {
	now := ev.Timestamp.UnixNanos()

	switch {
	case len(m.candles) == 0:
		m.openCandle(now, ev.Price, ev.Size)
		return nil
	case now < m.nextOpen:
		c := &m.candles[len(m.candles)-1]
		c.Close = ev.Price
		c.High = math.Max(c.High, ev.Price)
		c.Low = math.Min(c.Low, ev.Price)
		c.Volume += ev.Size
		return nil
	}

	m.openCandle(now, ev.Price, ev.Size)
	if len(m.candles) < m.longLen+1 {
		return nil
	}

	shortMA, prevShortMA := m.movingAverage(m.shortLen)
	longMA, prevLongMA := m.movingAverage(m.longLen)
	m.candles = m.candles[1:]

	pos := m.Position(ev.MarketType, ev.Exchange, ev.Security)

	var side market.Side
	switch {
	case prevShortMA < prevLongMA && shortMA > longMA:
		side = market.Buy
	case prevShortMA > prevLongMA && shortMA < longMA:
		side = market.Sell
	default:
		return nil
	}

	size := round2(m.balance(ev.MarketType) * 0.03 / ev.Price)
	if pos != 0 {
		size += math.Abs(pos)
	}

	order, err := m.arena.NewOrder(engine.OrderParams{
		Variant:    engine.MarketOrder,
		Side:       side,
		MarketType: ev.MarketType,
		Security:   ev.Security,
		Exchange:   ev.Exchange,
		Submitted:  ev.Timestamp,
		Leverage:   1,
		Margin:     market.NoMargin,
		BaseSize:   size,
		Price:      ev.Price,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("security", ev.Security.String()).
			Float64("size", size).
			Msg("crossover order rejected")
		return nil
	}
	return []*engine.Order{order}
}

func (m *MovingAverageCross) OnTopQuote(QuoteEvent) []*engine.Order { return nil }
func (m *MovingAverageCross) OnDepth(DepthEvent) []*engine.Order   { return nil }

func (m *MovingAverageCross) openCandle(now int64, price, size float64) {
	open := now - now%m.candlePeriod
	m.nextOpen = open + m.candlePeriod
	m.candles = append(m.candles, Candlestick{
		OpenAt: open,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: size,
	})
}

// movingAverage returns the simple moving average over the newest n candles
// and the same average shifted back by one candle. The newest candle is the
// one the current trade just opened, so its close is that trade's price.
func (m *MovingAverageCross) movingAverage(n int) (current, previous float64) {
	last := len(m.candles) - 1
	for i := 0; i < n; i++ {
		current += m.candles[last-i].Close
		previous += m.candles[last-i-1].Close
	}
	return current / float64(n), previous / float64(n)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
