package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cust-segmentation/pkg/models"
	"cust-segmentation/pkg/segmentation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLayouts = []string{"01/02/2006 3:04 PM", "01/02/2006"}

const report = `All Sales Report,,,,,,,,
Date,Trans No.,Product SKU,Member,Member ID,Net Sales,Quantity Sold,Date Joined,Marketing Source
10/25/2021 2:15 PM,1001,SKU-1,Jane D0e!,M-1,$12.50,3.5 g,01/15/2021,Instagram
10/25/2021 2:15 PM,1001,SKU-2,Jane D0e!,M-1,"$1,020.00",2 ea,01/15/2021,
,,,,,,,,
11/02/2021 9:05 AM,1002,SKU-1,Bob,M-2,$7.00,1 ea,,
`

func TestRead(t *testing.T) {
	txs, err := Read(strings.NewReader(report), "report.csv", Options{SkipRows: 1, DateLayouts: testLayouts})
	require.NoError(t, err)
	require.Len(t, txs, 3)

	first := txs[0]
	assert.Equal(t, "M-1", first.CustomerID)
	assert.Equal(t, "Jane De", first.CustomerName)
	assert.Equal(t, "1001", first.OrderID)
	assert.Equal(t, "SKU-1", first.SKU)
	assert.Equal(t, 12.5, first.NetAmount)
	assert.Equal(t, time.Date(2021, 10, 25, 14, 15, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC), first.JoinDate)
	assert.Equal(t, "Instagram", first.MarketingSource)
	assert.Equal(t, 3.5, first.Quantity)
	assert.Equal(t, "g", first.Unit)

	assert.Equal(t, 1020.0, txs[1].NetAmount)
	assert.Equal(t, models.DefaultMarketingSource, txs[1].MarketingSource)

	assert.True(t, txs[2].JoinDate.IsZero())
	assert.Equal(t, "Bob", txs[2].CustomerName)
}

func TestRead_Location(t *testing.T) {
	minus5 := time.FixedZone("UTC-5", -5*3600)
	txs, err := Read(strings.NewReader(report), "report.csv", Options{SkipRows: 1, DateLayouts: testLayouts, Location: minus5})
	require.NoError(t, err)
	require.NotEmpty(t, txs)

	assert.Equal(t, time.Date(2021, 10, 25, 14, 15, 0, 0, minus5), txs[0].Timestamp)
	assert.Equal(t, time.Date(2021, 10, 25, 19, 15, 0, 0, time.UTC), txs[0].Timestamp.UTC())
	assert.Equal(t, minus5, txs[0].JoinDate.Location())
}

func TestRead_DataFormatErrors(t *testing.T) {
	cases := map[string]struct {
		row    string
		column string
	}{
		"bad amount":     {"10/25/2021,1,S,A,M-1,abc,1 ea,,", ColNetSales},
		"missing member": {"10/25/2021,1,S,A,,$1.00,1 ea,,", ColMemberID},
		"bad date":       {"2021-13-45,1,S,A,M-1,$1.00,1 ea,,", ColDate},
		"bad join date":  {"10/25/2021,1,S,A,M-1,$1.00,1 ea,yesterday,", ColDateJoined},
	}
	header := "Date,Trans No.,Product SKU,Member,Member ID,Net Sales,Quantity Sold,Date Joined,Marketing Source\n"
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(header+c.row+"\n"), "x.csv", Options{DateLayouts: testLayouts})

			require.Error(t, err)
			assert.True(t, errors.Is(err, segmentation.ErrDataFormat))
			var rowErr *RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, c.column, rowErr.Column)
			assert.Equal(t, 2, rowErr.Line)
		})
	}
}

func TestRead_MissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("Date,Member ID\n10/25/2021,M-1\n"), "x.csv", Options{DateLayouts: testLayouts})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Trans No.")
}

func TestRead_EmptyFile(t *testing.T) {
	_, err := Read(strings.NewReader(""), "x.csv", Options{SkipRows: 1, DateLayouts: testLayouts})
	assert.Error(t, err)
}

func TestSplitQuantity(t *testing.T) {
	cases := []struct {
		in   string
		qty  float64
		unit string
	}{
		{"3.5 g", 3.5, "g"},
		{"2 ea", 2, "ea"},
		{"1ea", 1, "ea"},
		{"12", 12, ""},
		{"", 0, ""},
		{"n/a", 0, ""},
	}
	for _, c := range cases {
		q, u := SplitQuantity(c.in)
		assert.Equal(t, c.qty, q, c.in)
		assert.Equal(t, c.unit, u, c.in)
	}
}

func TestCleanMemberName(t *testing.T) {
	assert.Equal(t, "Jane Doe", CleanMemberName("  Jane  Doe#1 "))
	assert.Equal(t, "Zoë", CleanMemberName("Zoë"))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte(report), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte(report), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	txs, files, err := LoadDir(dir, Options{SkipRows: 1, DateLayouts: testLayouts})
	require.NoError(t, err)
	assert.Equal(t, 2, files)
	assert.Len(t, txs, 6)

	_, _, err = LoadDir(t.TempDir(), Options{DateLayouts: testLayouts})
	assert.Error(t, err)
}
