package segmentation

import (
	"fmt"
	"math"
	"sort"

	"cust-segmentation/pkg/models"
)

// DefaultCutPoints découpe chaque métrique en cinq tranches de 20%.
var DefaultCutPoints = []float64{0.2, 0.4, 0.6, 0.8}

// Boundaries contient, pour chaque métrique, la valeur de chaque point de coupe.
// Calculées une seule fois par run, sur l'ensemble des clients.
type Boundaries struct {
	CutPoints []float64
	Recency   []float64
	Frequency []float64
	Monetary  []float64
	// AvgDays est nil si aucun client n'a au moins deux commandes.
	AvgDays []float64
}

// ValidateCutPoints : quatre points strictement croissants dans ]0, 1[ (scores 1 à 5).
func ValidateCutPoints(cuts []float64) error {
	if len(cuts) != 4 {
		return fmt.Errorf("4 points de coupe attendus, %d reçus", len(cuts))
	}
	prev := 0.0
	for i, q := range cuts {
		if math.IsNaN(q) || q <= prev || q >= 1 {
			return fmt.Errorf("point de coupe %d invalide: %v", i, q)
		}
		prev = q
	}
	return nil
}

// ComputeBoundaries calcule les quantiles globaux des quatre métriques.
// Les clients sans écart moyen défini sont exclus du calcul de cette métrique.
func ComputeBoundaries(profiles []models.CustomerProfile, cuts []float64) (Boundaries, error) {
	if len(profiles) == 0 {
		return Boundaries{}, ErrEmptyInput
	}
	if cuts == nil {
		cuts = DefaultCutPoints
	}
	if err := ValidateCutPoints(cuts); err != nil {
		return Boundaries{}, err
	}

	recency := make([]float64, 0, len(profiles))
	frequency := make([]float64, 0, len(profiles))
	monetary := make([]float64, 0, len(profiles))
	var avgDays []float64
	for _, p := range profiles {
		recency = append(recency, float64(p.Recency))
		frequency = append(frequency, float64(p.Frequency))
		monetary = append(monetary, p.Monetary)
		if p.AvgDaysBetweenPurchases != nil {
			avgDays = append(avgDays, *p.AvgDaysBetweenPurchases)
		}
	}

	b := Boundaries{
		CutPoints: append([]float64(nil), cuts...),
		Recency:   quantiles(recency, cuts),
		Frequency: quantiles(frequency, cuts),
		Monetary:  quantiles(monetary, cuts),
	}
	if len(avgDays) > 0 {
		b.AvgDays = quantiles(avgDays, cuts)
	}
	return b, nil
}

func quantiles(values []float64, cuts []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out := make([]float64, len(cuts))
	for i, q := range cuts {
		out[i] = Quantile(sorted, q)
	}
	return out
}

// Quantile interpole linéairement entre les deux rangs les plus proches (pos = q*(n-1)).
// sorted doit être trié par ordre croissant et non vide.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
