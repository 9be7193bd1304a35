package source

import (
	"math/rand"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/shopspring/decimal"

	"github.com/quotewire/quotewire-go/wire"
)

const (
	basePrice   = 100.0
	priceSpread = 50.0
	baseVolume  = 1000
	volumeJit   = 1000

	// smoothing window keeps consecutive synthetic prices from jumping
	// across the whole spread every tick
	avgWindow = 5
)

// generator produces synthetic prices per ticker: each call draws a uniform
// price from [basePrice, basePrice+priceSpread), adds it to the ticker's
// short moving average and quotes that average rounded to cents.
type generator struct {
	rnd  *rand.Rand
	avgs map[string]*movingaverage.MovingAverage
}

func newGenerator() *generator {
	return &generator{
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
		avgs: make(map[string]*movingaverage.MovingAverage),
	}
}

func (g *generator) generate(tickers []string) Snapshot {
	now := uint64(time.Now().UnixMilli())
	snapshot := make(Snapshot, len(tickers))
	for _, ticker := range tickers {
		snapshot[ticker] = g.next(ticker, now)
	}
	return snapshot
}

func (g *generator) next(ticker string, now uint64) wire.Quote {
	avg, ok := g.avgs[ticker]
	if !ok {
		avg = movingaverage.New(avgWindow)
		g.avgs[ticker] = avg
	}
	avg.Add(basePrice + g.rnd.Float64()*priceSpread)

	price := decimal.NewFromFloat(avg.Avg()).Round(2).InexactFloat64()

	return wire.Quote{
		Ticker:    ticker,
		Price:     price,
		Volume:    baseVolume + uint32(g.rnd.Intn(volumeJit)),
		Timestamp: now,
	}
}
