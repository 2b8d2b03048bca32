package detector

import (
	"reflect"
	"testing"

	"trading-insights/internal/model"
)

// ── momentum ──

// 20 flat bars then a steady +10% over the last 10 bars on doubled volume.
func momentumRally(end float64) []model.Bar {
	closes := constant(30, 100)
	vols := constant(30, 1000)
	for i := 20; i < 30; i++ {
		closes[i] = 100 + (end-100)*float64(i-19)/10
		vols[i] = 2000
	}
	return barsFrom(closes, vols)
}

func TestMomentum_RallyOnVolume(t *testing.T) {
	in := mustDetect(t, NewMomentum(Config{}), momentumRally(110), nil)
	if in.SuggestedAction != model.ActionIncreasePosition {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionIncreasePosition)
	}
	if in.Confidence != momentumMaxConfidence {
		t.Errorf("confidence = %v, want cap %v", in.Confidence, momentumMaxConfidence)
	}
	if in.Impact != model.ImpactCritical {
		t.Errorf("impact = %s, want Critical for a 10%% shift", in.Impact)
	}
	assertClose(t, "price change", in.Metadata.PriceChange, 10, 1e-9)
}

func TestMomentum_SelloffReducesRisk(t *testing.T) {
	in := mustDetect(t, NewMomentum(Config{}), momentumRally(90), nil)
	if in.SuggestedAction != model.ActionReduceRisk {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionReduceRisk)
	}
}

func TestMomentum_NeedsVolumeAndShift(t *testing.T) {
	m := NewMomentum(Config{})

	flatVolume := momentumRally(110)
	for i := range flatVolume {
		flatVolume[i].Volume = 1000
	}
	if in := m.Detect(flatVolume, nil); in != nil {
		t.Errorf("fired without volume confirmation: %+v", in)
	}

	if in := m.Detect(barsFrom(constant(30, 100), nil), nil); in != nil {
		t.Errorf("fired on a flat series: %+v", in)
	}

	strict := NewMomentum(Config{SensitivityThreshold: 0.5})
	if in := strict.Detect(momentumRally(110), nil); in != nil {
		t.Errorf("fired below a 50%% threshold: %+v", in)
	}
}

// ── whale accumulation ──

func TestWhale_SpikeOnFlatPrice(t *testing.T) {
	vols := constant(30, 1000)
	vols[29] = 3000
	in := mustDetect(t, NewWhaleAccumulation(Config{}), barsFrom(constant(30, 100), vols), nil)
	if in.SuggestedAction != model.ActionScaleIn {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionScaleIn)
	}
	assertClose(t, "confidence", in.Confidence, 0.7, 1e-9)
	if in.Impact != model.ImpactMedium {
		t.Errorf("impact = %s, want Medium", in.Impact)
	}
}

func TestWhale_UnstablePrice(t *testing.T) {
	closes := constant(30, 100)
	for i, c := range []float64{101, 102, 103, 104, 105} {
		closes[25+i] = c
	}
	w := NewWhaleAccumulation(Config{})

	vols := constant(30, 1000)
	vols[29] = 2800
	if in := w.Detect(barsFrom(closes, vols), nil); in != nil {
		t.Errorf("moderate spike on a 5%% move should not fire: %+v", in)
	}

	vols[29] = 3500
	in := mustDetect(t, w, barsFrom(closes, vols), nil)
	if in.SuggestedAction != model.ActionMonitorClosely {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionMonitorClosely)
	}
}

func TestWhale_UniformVolume(t *testing.T) {
	if in := NewWhaleAccumulation(Config{}).Detect(barsFrom(constant(30, 100), nil), nil); in != nil {
		t.Errorf("fired on uniform volume: %+v", in)
	}
}

// ── volatility cluster ──

func alternating(n int, lo, hi float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo
		if i%2 == 1 {
			out[i] = hi
		}
	}
	return out
}

func TestVolatility_ExpandingRange(t *testing.T) {
	closes := alternating(30, 100, 100.1)
	for i := 25; i < 30; i++ {
		closes[i] = 100
		if i%2 == 1 {
			closes[i] = 103
		}
	}
	in := mustDetect(t, NewVolatilityCluster(Config{}), barsFrom(closes, nil), nil)
	if in.SuggestedAction != model.ActionReduceRisk {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionReduceRisk)
	}
	if in.Confidence < 0.55 {
		t.Errorf("confidence = %v, want >= 0.55", in.Confidence)
	}
}

func TestVolatility_CalmSeries(t *testing.T) {
	if in := NewVolatilityCluster(Config{}).Detect(barsFrom(alternating(30, 100, 100.1), nil), nil); in != nil {
		t.Errorf("fired on steady volatility: %+v", in)
	}
}

// ── trend reversal ──

func TestTrendReversal_BullishCross(t *testing.T) {
	closes := make([]float64, 30)
	for i := 0; i < 29; i++ {
		closes[i] = 130 - float64(i)
	}
	closes[29] = 160
	in := mustDetect(t, NewTrendReversal(Config{}), barsFrom(closes, nil), nil)
	if in.SuggestedAction != model.ActionScaleIn {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionScaleIn)
	}
	if in.Confidence < 0.65 || in.Confidence > reversalMaxConfidence {
		t.Errorf("confidence = %v, want within [0.65, %v]", in.Confidence, reversalMaxConfidence)
	}
}

func TestTrendReversal_BearishCross(t *testing.T) {
	closes := make([]float64, 30)
	for i := 0; i < 29; i++ {
		closes[i] = 70 + float64(i)
	}
	closes[29] = 40
	in := mustDetect(t, NewTrendReversal(Config{}), barsFrom(closes, nil), nil)
	if in.SuggestedAction != model.ActionExitPosition {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionExitPosition)
	}
}

func TestTrendReversal_SteadyTrend(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	if in := NewTrendReversal(Config{}).Detect(barsFrom(closes, nil), nil); in != nil {
		t.Errorf("fired on a steady trend: %+v", in)
	}
}

// ── liquidity squeeze ──

func TestLiquiditySqueeze_Contraction(t *testing.T) {
	window := make([]model.Bar, 30)
	for i := range window {
		b := model.Bar{Timestamp: int64(i+1) * barStepMs, Open: 100, Close: 100, High: 102, Low: 98, Volume: 1000}
		if i >= 25 {
			b.High, b.Low, b.Volume = 100.5, 99.5, 300
		}
		window[i] = b
	}
	in := mustDetect(t, NewLiquiditySqueeze(Config{}), window, nil)
	if in.SuggestedAction != model.ActionWaitForConfirmation {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionWaitForConfirmation)
	}
	if in.Confidence != liquidityMaxConfidence {
		t.Errorf("confidence = %v, want cap %v", in.Confidence, liquidityMaxConfidence)
	}
	if in.Impact != model.ImpactCritical {
		t.Errorf("impact = %s, want Critical", in.Impact)
	}
	assertClose(t, "support", in.Metadata.SupportLevel, 99.5, 1e-9)
	assertClose(t, "resistance", in.Metadata.ResistanceLevel, 100.5, 1e-9)
}

func TestLiquiditySqueeze_SteadyVolume(t *testing.T) {
	if in := NewLiquiditySqueeze(Config{}).Detect(barsFrom(constant(30, 100), nil), nil); in != nil {
		t.Errorf("fired on steady volume: %+v", in)
	}
}

// ── correlated movement ──

func TestCorrelation_IdenticalReturns(t *testing.T) {
	primary := randomBars(11, 40)
	scaled := func(k float64) []model.Bar {
		out := make([]model.Bar, len(primary))
		for i, b := range primary {
			b.Open, b.High, b.Low, b.Close = b.Open*k, b.High*k, b.Low*k, b.Close*k
			out[i] = b
		}
		return out
	}
	peers := map[string][]model.Bar{
		"BBB":   scaled(3),
		"AAA":   scaled(2),
		"FLAT":  barsFrom(constant(40, 50), nil),
		"SHORT": primary[:5],
	}

	in := mustDetect(t, NewCorrelatedMovement(Config{}), primary, peers)
	if in.Confidence != correlationMaxConfidence {
		t.Errorf("confidence = %v, want cap %v", in.Confidence, correlationMaxConfidence)
	}
	if in.Impact != model.ImpactCritical {
		t.Errorf("impact = %s, want Critical", in.Impact)
	}
	if in.SuggestedAction != model.ActionMonitorClosely {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionMonitorClosely)
	}
	if want := []string{"AAA", "BBB"}; !reflect.DeepEqual(in.Metadata.CorrelatedAssets, want) {
		t.Errorf("correlated assets = %v, want %v", in.Metadata.CorrelatedAssets, want)
	}
}

func TestCorrelation_NoPeers(t *testing.T) {
	c := NewCorrelatedMovement(Config{})
	primary := randomBars(11, 40)
	if in := c.Detect(primary, nil); in != nil {
		t.Errorf("fired without peers: %+v", in)
	}
	flat := map[string][]model.Bar{"FLAT": barsFrom(constant(40, 50), nil)}
	if in := c.Detect(primary, flat); in != nil {
		t.Errorf("fired against a flat peer: %+v", in)
	}
}

// ── breakout ──

func breakoutWindow(last model.Bar, recentVolume float64) []model.Bar {
	window := make([]model.Bar, 30)
	for i := range window {
		window[i] = model.Bar{Timestamp: int64(i+1) * barStepMs, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}
		if i >= 27 {
			window[i].Volume = recentVolume
		}
	}
	last.Timestamp = window[29].Timestamp
	last.Volume = recentVolume
	window[29] = last
	return window
}

func TestBreakout_AboveResistance(t *testing.T) {
	window := breakoutWindow(model.Bar{Open: 100, High: 104.5, Low: 100, Close: 104}, 2000)
	in := mustDetect(t, NewBreakout(Config{}), window, nil)
	if in.SuggestedAction != model.ActionIncreasePosition {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionIncreasePosition)
	}
	if in.Impact != model.ImpactMedium {
		t.Errorf("impact = %s, want Medium for a ~3%% break", in.Impact)
	}
	if in.Confidence != breakoutMaxConfidence {
		t.Errorf("confidence = %v, want cap %v", in.Confidence, breakoutMaxConfidence)
	}
	assertClose(t, "resistance", in.Metadata.ResistanceLevel, 101, 1e-9)
}

func TestBreakout_BelowSupport(t *testing.T) {
	window := breakoutWindow(model.Bar{Open: 97, High: 97, Low: 95.5, Close: 96}, 2000)
	in := mustDetect(t, NewBreakout(Config{}), window, nil)
	if in.SuggestedAction != model.ActionExitPosition {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionExitPosition)
	}
	if in.Impact != model.ImpactHigh {
		t.Errorf("impact = %s, want High for a ~3.03%% break", in.Impact)
	}
}

func TestBreakout_NoVolume(t *testing.T) {
	window := breakoutWindow(model.Bar{Open: 100, High: 104.5, Low: 100, Close: 104}, 1000)
	if in := NewBreakout(Config{}).Detect(window, nil); in != nil {
		t.Errorf("fired without volume: %+v", in)
	}
}

// ── divergence ──

// A sharp rally sets the RSI peak; a later marginal new high comes on weaker RSI.
func divergenceCloses() []float64 {
	closes := alternating(16, 100, 100.5)
	return append(closes, 105, 110, 115, 112, 109, 111, 113, 114, 115.2, 115.5)
}

func TestDivergence_Bearish(t *testing.T) {
	in := mustDetect(t, NewDivergence(Config{}), barsFrom(divergenceCloses(), nil), nil)
	if in.SuggestedAction != model.ActionReduceRisk {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionReduceRisk)
	}
	assertClose(t, "confidence", in.Confidence, 0.76, 1e-9)
	if in.Impact != model.ImpactHigh {
		t.Errorf("impact = %s, want High", in.Impact)
	}
}

func TestDivergence_Bullish(t *testing.T) {
	closes := divergenceCloses()
	for i := range closes {
		closes[i] = 200 - closes[i]
	}
	in := mustDetect(t, NewDivergence(Config{}), barsFrom(closes, nil), nil)
	if in.SuggestedAction != model.ActionScaleIn {
		t.Errorf("action = %s, want %s", in.SuggestedAction, model.ActionScaleIn)
	}
	assertClose(t, "confidence", in.Confidence, 0.76, 1e-9)
}

func TestDivergence_ConfirmedHigh(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	if in := NewDivergence(Config{}).Detect(barsFrom(closes, nil), nil); in != nil {
		t.Errorf("fired on a new high confirmed by RSI: %+v", in)
	}
}
