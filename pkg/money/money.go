package money

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Les montants sont additionnés en décimal exact puis convertis en float64
// seulement à la fin, pour que la somme ne dépende pas de l'ordre des lignes.

var ctx = apd.BaseContext.WithPrecision(34)

type Amount struct {
	value apd.Decimal
}

// Parse lit un montant d'export ("$1,234.50", "-$3.00", "($3.00)", "12").
func Parse(s string) (Amount, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Amount{}, fmt.Errorf("montant vide")
	}
	neg := false
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		neg = true
		raw = raw[1 : len(raw)-1]
	}
	if strings.HasPrefix(raw, "-") {
		neg = !neg
		raw = raw[1:]
	}
	raw = strings.TrimPrefix(raw, "$")
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Amount{}, fmt.Errorf("montant invalide %q", s)
	}

	var d apd.Decimal
	if _, _, err := d.SetString(raw); err != nil {
		return Amount{}, fmt.Errorf("montant invalide %q: %w", s, err)
	}
	if d.Form != apd.Finite {
		return Amount{}, fmt.Errorf("montant invalide %q", s)
	}
	if neg {
		d.Neg(&d)
	}
	return Amount{value: d}, nil
}

// FromFloat64 convertit via la représentation décimale la plus courte du float.
func FromFloat64(f float64) (Amount, error) {
	var d apd.Decimal
	if _, err := d.SetFloat64(f); err != nil {
		return Amount{}, err
	}
	return Amount{value: d}, nil
}

func (a Amount) Add(other Amount) Amount {
	var out apd.Decimal
	_, _ = ctx.Add(&out, &a.value, &other.value)
	return Amount{value: out}
}

func (a Amount) Float64() float64 {
	f, _ := a.value.Float64()
	return f
}

func (a Amount) String() string {
	return a.value.Text('f')
}

func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// Sum additionne des montants float64 en décimal exact.
func Sum(values []float64) (float64, error) {
	var total Amount
	for _, v := range values {
		a, err := FromFloat64(v)
		if err != nil {
			return 0, err
		}
		total = total.Add(a)
	}
	return total.Float64(), nil
}
