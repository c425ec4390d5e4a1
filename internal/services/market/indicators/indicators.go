// Package indicators annotates candles with technical indicators computed by the
// cinar/indicator channel pipelines. Every series is aligned to the end of the
// candle series; candles inside an indicator's warm-up get a nil value.
package indicators

import (
	"math"
	"sync"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/cinar/indicator/v2/volume"
	"github.com/vadiminshakov/autotrade/internal/domain"
)

// Indicator names as they appear in the market context.
const (
	BollingerMiddle = "bb_bbm"
	BollingerUpper  = "bb_bbh"
	BollingerLower  = "bb_bbl"
	RSI             = "rsi"
	MACD            = "macd"
	MACDSignal      = "macd_signal"
	MACDDiff        = "macd_diff"
	SMA20           = "sma_20"
	EMA12           = "ema_12"
	StochK          = "stoch_k"
	StochD          = "stoch_d"
	ATR             = "atr"
	OBV             = "obv"
)

// Names every indicator produced by Annotate.
var Names = []string{
	BollingerMiddle, BollingerUpper, BollingerLower,
	RSI,
	MACD, MACDSignal, MACDDiff,
	SMA20, EMA12,
	StochK, StochD,
	ATR,
	OBV,
}

const (
	bollingerPeriod = 20
	rsiPeriod       = 14
	smaPeriod       = 20
	emaPeriod       = 12
	atrPeriod       = 14

	// shortest inputs the pipelines produce output for
	minBollinger = bollingerPeriod
	minRSI       = rsiPeriod + 1
	minMACD      = 26 + 9
	minSMA       = smaPeriod
	minEMA       = emaPeriod
	minStoch     = 14 + 3
	minATR       = atrPeriod + 1
)

type ohlcv struct {
	high, low, close, volume []float64
}

func split(candles []domain.Candle) ohlcv {
	s := ohlcv{
		high:   make([]float64, len(candles)),
		low:    make([]float64, len(candles)),
		close:  make([]float64, len(candles)),
		volume: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.high[i] = c.High.InexactFloat64()
		s.low[i] = c.Low.InexactFloat64()
		s.close[i] = c.Close.InexactFloat64()
		s.volume[i] = c.Volume.InexactFloat64()
	}
	return s
}

// Annotate returns candles with the full indicator set. The input is not modified.
func Annotate(candles []domain.Candle) []domain.AnnotatedCandle {
	if len(candles) == 0 {
		return nil
	}

	n := len(candles)
	s := split(candles)
	series := make(map[string][]float64, len(Names))

	if n >= minBollinger {
		upper, middle, lower := volatility.NewBollingerBands[float64]().Compute(helper.SliceToChan(s.close))
		out := collect(upper, middle, lower)
		series[BollingerUpper], series[BollingerMiddle], series[BollingerLower] = out[0], out[1], out[2]
	}

	if n >= minRSI {
		series[RSI] = helper.ChanToSlice(momentum.NewRsiWithPeriod[float64](rsiPeriod).Compute(helper.SliceToChan(s.close)))
	}

	if n >= minMACD {
		macd, signal := trend.NewMacd[float64]().Compute(helper.SliceToChan(s.close))
		out := collect(macd, signal)
		series[MACD], series[MACDSignal] = out[0], out[1]
		series[MACDDiff] = diff(out[0], out[1])
	}

	if n >= minSMA {
		series[SMA20] = helper.ChanToSlice(trend.NewSmaWithPeriod[float64](smaPeriod).Compute(helper.SliceToChan(s.close)))
	}

	if n >= minEMA {
		series[EMA12] = helper.ChanToSlice(trend.NewEmaWithPeriod[float64](emaPeriod).Compute(helper.SliceToChan(s.close)))
	}

	if n >= minStoch {
		k, d := momentum.NewStochasticOscillator[float64]().Compute(
			helper.SliceToChan(s.high),
			helper.SliceToChan(s.low),
			helper.SliceToChan(s.close),
		)
		out := collect(k, d)
		series[StochK], series[StochD] = out[0], out[1]
	}

	if n >= minATR {
		series[ATR] = helper.ChanToSlice(volatility.NewAtrWithPeriod[float64](atrPeriod).Compute(
			helper.SliceToChan(s.high),
			helper.SliceToChan(s.low),
			helper.SliceToChan(s.close),
		))
	}

	series[OBV] = helper.ChanToSlice(volume.NewObv[float64]().Compute(
		helper.SliceToChan(s.close),
		helper.SliceToChan(s.volume),
	))

	result := make([]domain.AnnotatedCandle, n)
	for i, c := range candles {
		set := make(domain.IndicatorSet, len(Names))
		for _, name := range Names {
			set[name] = valueAt(series[name], n, i)
		}
		result[i] = domain.AnnotatedCandle{Candle: c, Indicators: set}
	}
	return result
}

// Tail returns the last n annotated candles.
func Tail(series []domain.AnnotatedCandle, n int) []domain.AnnotatedCandle {
	if n <= 0 {
		return nil
	}
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

// valueAt maps candle i of n onto an output aligned to the series end.
// NaN and infinities (e.g. RSI over a flat window) become nil.
func valueAt(out []float64, n, i int) *float64 {
	offset := n - len(out)
	if i < offset || offset < 0 {
		return nil
	}
	v := out[i-offset]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// collect drains all channels concurrently; the pipelines block until every
// output is read.
func collect(chans ...<-chan float64) [][]float64 {
	out := make([][]float64, len(chans))
	var wg sync.WaitGroup
	for i, ch := range chans {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = helper.ChanToSlice(ch)
		}()
	}
	wg.Wait()
	return out
}

func diff(a, b []float64) []float64 {
	n := min(len(a), len(b))
	out := make([]float64, n)
	for i := range n {
		out[i] = a[len(a)-n+i] - b[len(b)-n+i]
	}
	return out
}
