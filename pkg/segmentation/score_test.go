package segmentation

import (
	"fmt"
	"testing"
	"time"

	"cust-segmentation/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func profile(id string, recency, frequency int, monetary float64, avg *float64) models.CustomerProfile {
	return models.CustomerProfile{
		CustomerID:              id,
		Recency:                 recency,
		Frequency:               frequency,
		Monetary:                monetary,
		AvgDaysBetweenPurchases: avg,
		LastPurchaseDate:        testNow.AddDate(0, 0, -recency),
	}
}

func TestQuantile(t *testing.T) {
	sorted := []float64{10, 50, 100}
	assert.InDelta(t, 26.0, Quantile(sorted, 0.2), 1e-9)
	assert.InDelta(t, 42.0, Quantile(sorted, 0.4), 1e-9)
	assert.InDelta(t, 60.0, Quantile(sorted, 0.6), 1e-9)
	assert.InDelta(t, 80.0, Quantile(sorted, 0.8), 1e-9)
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.4))
	assert.Equal(t, 3.0, Quantile([]float64{1, 2, 3, 4, 5}, 0.5))
}

func TestValidateCutPoints(t *testing.T) {
	assert.NoError(t, ValidateCutPoints(DefaultCutPoints))
	assert.NoError(t, ValidateCutPoints([]float64{0.1, 0.25, 0.5, 0.9}))
	assert.Error(t, ValidateCutPoints([]float64{0.2, 0.4, 0.6}))
	assert.Error(t, ValidateCutPoints([]float64{0.2, 0.2, 0.6, 0.8}))
	assert.Error(t, ValidateCutPoints([]float64{0, 0.4, 0.6, 0.8}))
	assert.Error(t, ValidateCutPoints([]float64{0.2, 0.4, 0.6, 1}))
}

func TestScoreDirection(t *testing.T) {
	bounds := []float64{10, 20, 30, 40}

	t.Run("ties resolve to the lower bucket", func(t *testing.T) {
		assert.Equal(t, 1, LowerIsBetter(10, bounds))
		assert.Equal(t, 2, LowerIsBetter(10.5, bounds))
		assert.Equal(t, 4, LowerIsBetter(40, bounds))
		assert.Equal(t, 5, LowerIsBetter(40.1, bounds))
	})

	t.Run("higher is better is inverted", func(t *testing.T) {
		assert.Equal(t, 5, HigherIsBetter(10, bounds))
		assert.Equal(t, 4, HigherIsBetter(20, bounds))
		assert.Equal(t, 1, HigherIsBetter(41, bounds))
	})
}

func TestRFMCode(t *testing.T) {
	assert.Equal(t, "1234", RFMCode(1, 2, 3, 4))
	assert.Equal(t, "5555", RFMCode(5, 5, 5, 5))
}

func TestScore_MonetaryScenario(t *testing.T) {
	profiles := []models.CustomerProfile{
		profile("low", 5, 1, 10, nil),
		profile("mid", 5, 1, 50, nil),
		profile("high", 5, 1, 100, nil),
	}
	b, err := ComputeBoundaries(profiles, nil)
	require.NoError(t, err)

	scored := Score(profiles, b)
	byID := map[string]models.SegmentScore{}
	for _, s := range scored {
		byID[s.CustomerID] = s.SegmentScore
	}
	assert.Equal(t, 5, byID["low"].MQuant)
	assert.Equal(t, 3, byID["mid"].MQuant)
	assert.Equal(t, 1, byID["high"].MQuant)
}

func TestScore_IntervalNullHandling(t *testing.T) {
	defined := []models.CustomerProfile{
		profile("a", 1, 2, 10, floatPtr(2)),
		profile("b", 2, 3, 20, floatPtr(4)),
		profile("c", 3, 4, 30, floatPtr(6)),
		profile("d", 4, 5, 40, floatPtr(8)),
		profile("e", 5, 6, 50, floatPtr(10)),
	}
	withSingles := append(append([]models.CustomerProfile{}, defined...),
		profile("single-1", 1, 1, 5, nil),
		profile("single-2", 90, 1, 500, nil),
	)

	onlyDefined, err := ComputeBoundaries(defined, nil)
	require.NoError(t, err)
	mixed, err := ComputeBoundaries(withSingles, nil)
	require.NoError(t, err)

	assert.Equal(t, onlyDefined.AvgDays, mixed.AvgDays)

	for _, s := range Score(withSingles, mixed) {
		if s.AvgDaysBetweenPurchases == nil {
			assert.Equal(t, MissingIntervalScore, s.AFQuant, s.CustomerID)
		}
	}
}

func TestScore_AllSingleOrderCustomers(t *testing.T) {
	profiles := []models.CustomerProfile{
		profile("a", 1, 1, 10, nil),
		profile("b", 2, 1, 20, nil),
	}
	b, err := ComputeBoundaries(profiles, nil)
	require.NoError(t, err)
	assert.Nil(t, b.AvgDays)

	for _, s := range Score(profiles, b) {
		assert.Equal(t, MissingIntervalScore, s.AFQuant)
	}
}

func TestScore_InsufficientVariance(t *testing.T) {
	profiles := []models.CustomerProfile{
		profile("a", 7, 2, 25, floatPtr(3)),
		profile("b", 7, 2, 25, floatPtr(3)),
		profile("c", 7, 2, 25, floatPtr(3)),
	}
	b, err := ComputeBoundaries(profiles, nil)
	require.NoError(t, err)

	for _, s := range Score(profiles, b) {
		assert.Equal(t, "1551", s.RFMCode)
	}
}

func TestScore_Properties(t *testing.T) {
	var profiles []models.CustomerProfile
	for i := 0; i < 40; i++ {
		var avg *float64
		if i%3 != 0 {
			avg = floatPtr(float64((i * 7) % 23))
		}
		freq := 1 + (i*5)%9
		if avg == nil {
			freq = 1
		}
		profiles = append(profiles, profile(fmt.Sprintf("c%02d", i), (i*13)%120, freq, float64((i*37)%250)+0.5, avg))
	}
	profiles = append(profiles, profile("recent", 0, 3, 100, floatPtr(4)))
	profiles = append(profiles, profile("whale", 30, 3, 10_000, floatPtr(4)))

	b, err := ComputeBoundaries(profiles, nil)
	require.NoError(t, err)
	scored := Score(profiles, b)

	t.Run("scores stay in range", func(t *testing.T) {
		for _, s := range scored {
			for _, q := range []int{s.RQuant, s.FQuant, s.MQuant, s.AFQuant} {
				assert.GreaterOrEqual(t, q, 1)
				assert.LessOrEqual(t, q, 5)
			}
			assert.Len(t, s.RFMCode, 4)
		}
	})

	t.Run("best customer gets m_quant 1", func(t *testing.T) {
		for _, s := range scored {
			if s.CustomerID == "whale" {
				assert.Equal(t, 1, s.MQuant)
			}
		}
	})

	t.Run("recency zero is never scored worse", func(t *testing.T) {
		var recent models.ScoredCustomer
		for _, s := range scored {
			if s.CustomerID == "recent" {
				recent = s
			}
		}
		for _, s := range scored {
			if s.Recency > 0 {
				assert.LessOrEqual(t, recent.RQuant, s.RQuant, s.CustomerID)
			}
		}
	})
}

func TestSegment_Deterministic(t *testing.T) {
	txs := sampleTransactions()
	txs = append(txs,
		tx("C", "o9", at(1, 2, 10), "sku-9", 300),
		tx("C", "o10", at(1, 3, 10), "sku-9", 300),
		tx("D", "o11", time.Date(2023, 10, 3, 10, 0, 0, 0, time.UTC), "sku-2", 12),
	)
	reversed := make([]models.Transaction, len(txs))
	for i := range txs {
		reversed[len(txs)-1-i] = txs[i]
	}

	opts := Options{Now: testNow}
	first, err := Segment(txs, opts)
	require.NoError(t, err)
	second, err := Segment(txs, opts)
	require.NoError(t, err)
	shuffled, err := Segment(reversed, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, shuffled)
	assert.Equal(t, "C", first.Customers[0].CustomerID)
	assert.Len(t, first.Churn, 4)
	assert.Zero(t, first.Duplicates)
}

func TestSegment_CountsDuplicates(t *testing.T) {
	txs := sampleTransactions()
	txs = append(txs, txs[0], txs[2])

	out, err := Segment(txs, Options{Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Duplicates)
	require.Len(t, out.Customers, 2)
	assert.Equal(t, 40.0, out.Customers[0].Monetary)
}

func TestSegment_Errors(t *testing.T) {
	_, err := Segment(nil, Options{Now: testNow})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Segment(sampleTransactions(), Options{Now: testNow, CutPoints: []float64{0.5}})
	assert.Error(t, err)

	_, err = Segment(sampleTransactions(), Options{Now: testNow, Policy: ChurnPolicy{1: 90}})
	assert.Error(t, err)
}
