package usecase

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/materialquote/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

var normalizeNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func normalizeOpts(version int64) NormalizeOptions {
	return NormalizeOptions{Version: version, Currency: "₹", Source: "prices.csv", Now: normalizeNow}
}

func TestNormalizeCatalogMixedRows(t *testing.T) {
	rows := []domain.RawRow{
		{"Item": "Cement", "Rate": "350", "Unit": "Bags"},
		{"Item": "River Sand", "Rate": "1,200", "Unit": "ton"},
		{"Item": "Steel", "Rate": "call us", "Unit": "kg"},
		{"Item": "Red Bricks", "Rate": "₹8", "Unit": "pcs"},
		{"Item": "", "Rate": "100", "Unit": "bag"},
		{"Item": "M-Sand", "Rate": "Rs. 900/-", "Unit": "Tons"},
		{"Item": "Wall Putty", "Rate": "₹ 650 per bag", "Unit": "bag"},
		{"Item": "PVC Pipe", "Rate": "240.50", "Unit": "piece"},
		{"Item": "Binding Wire", "Rate": "85/kg", "Unit": "kg"},
		{"Item": "Tiles", "Rate": "45", "Unit": "sq ft"},
	}

	result, err := NewCatalogNormalizer().NormalizeCatalog(rows, normalizeOpts(3))
	require.NoError(t, err)

	assert.Equal(t, 8, result.Accepted)
	assert.Equal(t, 2, result.Rejected)
	assert.Equal(t, 0, result.Replaced)
	assert.Equal(t, []RowRejection{
		{Row: 3, Name: "Steel", Reason: reasonInvalidPrice},
		{Row: 5, Reason: reasonEmptyName},
	}, result.Rejections)

	catalog := result.Catalog
	require.NotNil(t, catalog)
	assert.Equal(t, int64(3), catalog.Version())
	assert.Equal(t, "₹", catalog.Currency())
	assert.Equal(t, "prices.csv", catalog.Source())
	assert.Equal(t, normalizeNow, catalog.CreatedAt())
	require.Equal(t, 8, catalog.Len())

	want := []struct {
		name  string
		price int64
		unit  string
	}{
		{"Cement", 35000, "bag"},
		{"River Sand", 120000, "ton"},
		{"Red Bricks", 800, "piece"},
		{"M-Sand", 90000, "ton"},
		{"Wall Putty", 65000, "bag"},
		{"PVC Pipe", 24050, "piece"},
		{"Binding Wire", 8500, "kg"},
		{"Tiles", 4500, "sq.ft"},
	}
	for i, w := range want {
		e := catalog.At(i)
		assert.Equal(t, i+1, e.ID, "id of %s", w.name)
		assert.Equal(t, w.name, e.Name)
		assert.Equal(t, w.price, e.Price, "price of %s", w.name)
		assert.Equal(t, w.unit, e.Unit, "unit of %s", w.name)
	}

	rejErr := result.RejectionsErr()
	assert.Len(t, multierr.Errors(rejErr), 2)
	assert.ErrorIs(t, rejErr, domain.ErrRowRejected)
}

func TestNormalizeCatalogEmpty(t *testing.T) {
	n := NewCatalogNormalizer()

	t.Run("no rows", func(t *testing.T) {
		result, err := n.NormalizeCatalog(nil, normalizeOpts(1))
		assert.ErrorIs(t, err, domain.ErrCatalogEmpty)
		require.NotNil(t, result)
		assert.Nil(t, result.Catalog)
		assert.Empty(t, result.Rejections)
	})

	t.Run("all rows rejected", func(t *testing.T) {
		rows := []domain.RawRow{
			{"name": "Cement", "price": "", "unit": "bag"},
			{"name": "Sand", "price": "-5", "unit": "ton"},
			{"name": "Steel", "price": "60", "unit": ""},
		}
		result, err := n.NormalizeCatalog(rows, normalizeOpts(1))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrCatalogEmpty))
		assert.Contains(t, err.Error(), "3 of 3 rows rejected")
		assert.Nil(t, result.Catalog)
		assert.Equal(t, 3, result.Rejected)
		assert.Equal(t, []RowRejection{
			{Row: 1, Name: "Cement", Reason: reasonEmptyPrice},
			{Row: 2, Name: "Sand", Reason: reasonNegativePrice},
			{Row: 3, Name: "Steel", Reason: reasonEmptyUnit},
		}, result.Rejections)
	})
}

func TestNormalizeCatalogDuplicates(t *testing.T) {
	rows := []domain.RawRow{
		{"name": "Cement", "price": "340", "unit": "bag"},
		{"name": "Sand", "price": "1200", "unit": "ton"},
		{"name": "CEMENT ", "price": "350", "unit": "bag", "category": "Binding"},
	}

	result, err := NewCatalogNormalizer().NormalizeCatalog(rows, normalizeOpts(1))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Accepted)
	assert.Equal(t, 1, result.Replaced)
	require.Equal(t, 2, result.Catalog.Len())

	first := result.Catalog.At(0)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "CEMENT", first.Name)
	assert.Equal(t, int64(35000), first.Price)
	assert.Equal(t, "Binding", first.Category)
	assert.Equal(t, "Sand", result.Catalog.At(1).Name)
}

func TestNormalizeCatalogColumns(t *testing.T) {
	rows := []domain.RawRow{{
		"Item Name":     "Cement",
		"Rate (₹)":      "350",
		"UOM":           "Bag",
		"Type":          "Binding",
		"Remarks":       "  OPC   53 grade ",
		"Also Known As": "cement bag, OPC; opc | Cement",
	}}

	result, err := NewCatalogNormalizer().NormalizeCatalog(rows, normalizeOpts(1))
	require.NoError(t, err)

	e := result.Catalog.At(0)
	assert.Equal(t, "Cement", e.Name)
	assert.Equal(t, int64(35000), e.Price)
	assert.Equal(t, "bag", e.Unit)
	assert.Equal(t, "Binding", e.Category)
	assert.Equal(t, "OPC 53 grade", e.Description)
	assert.Equal(t, []string{"cement bag", "opc"}, e.Aliases)
}

func TestCanonicalColumns(t *testing.T) {
	t.Run("canonical header wins over synonym", func(t *testing.T) {
		got := canonicalColumns(domain.RawRow{"Product": "Sand", "Name": "Cement"})
		assert.Equal(t, "Cement", got[columnName])
	})

	t.Run("blank canonical header falls back to synonym", func(t *testing.T) {
		got := canonicalColumns(domain.RawRow{"Name": " ", "Material": "Cement"})
		assert.Equal(t, "Cement", got[columnName])
	})

	t.Run("unknown headers are dropped", func(t *testing.T) {
		got := canonicalColumns(domain.RawRow{"Supplier": "Acme", "unit_price": "10"})
		assert.Equal(t, map[string]string{columnPrice: "10"}, got)
	})
}

func TestNormalizeHeader(t *testing.T) {
	testCases := map[string]string{
		"Rate (₹)":       "rate",
		"unit_price":     "unit price",
		"  Item   Name ": "item name",
		"Price [INR]:":   "price",
		"U.O.M":          "u o m",
	}

	for input, want := range testCases {
		if got := normalizeHeader(input); got != want {
			t.Errorf("normalizeHeader(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	testCases := []struct {
		input   string
		want    int64
		wantErr string
	}{
		{"350", 35000, ""},
		{"Rs350", 35000, ""},
		{"Rs. 350", 35000, ""},
		{"INR 1,200", 120000, ""},
		{"1,200/-", 120000, ""},
		{"₹ 350 per bag", 35000, ""},
		{"350/bag", 35000, ""},
		{"Rs. 1,20,000.00", 12000000, ""},
		{"$12.99", 1299, ""},
		{"0.005", 1, ""},
		{"0", 0, ""},
		{"92233720368547758.07", math.MaxInt64, ""},
		{"", 0, reasonEmptyPrice},
		{"  ", 0, reasonEmptyPrice},
		{"₹", 0, reasonEmptyPrice},
		{"call us", 0, reasonInvalidPrice},
		{"12.3.4", 0, reasonInvalidPrice},
		{"-50", 0, reasonNegativePrice},
		{"92233720368547758.08", 0, reasonPriceTooLarge},
		{"99999999999999999999", 0, reasonPriceTooLarge},
		{"1e30", 0, reasonPriceTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := parsePrice(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got, "parsePrice(%q)", tc.input)
		})
	}
}

func TestNormalizeCatalog_OversizedPricesRejected(t *testing.T) {
	rows := []domain.RawRow{
		{"name": "Cement", "price": "99999999999999999999", "unit": "bag"},
		{"name": "Sand", "price": "1e30", "unit": "ton"},
		{"name": "Bricks", "price": "8", "unit": "piece"},
	}

	result, err := NewCatalogNormalizer().NormalizeCatalog(rows, NormalizeOptions{Version: 1, Currency: "₹"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, []RowRejection{
		{Row: 1, Name: "Cement", Reason: reasonPriceTooLarge},
		{Row: 2, Name: "Sand", Reason: reasonPriceTooLarge},
	}, result.Rejections)
	for _, e := range result.Catalog.Entries() {
		assert.GreaterOrEqual(t, e.Price, int64(0), e.Name)
	}
}

func TestSplitAliases(t *testing.T) {
	assert.Nil(t, splitAliases("  ", "Cement"))
	assert.Equal(t, []string{"sand", "river sand fine"}, splitAliases("Sand;  River  Sand  Fine\nsand", "River Sand"))
	assert.Nil(t, splitAliases("Cement, CEMENT", "Cement"))
}

func TestNormalizeCatalogRoundTrip(t *testing.T) {
	n := NewCatalogNormalizer()

	rows := make([]domain.RawRow, 0, 25)
	for i := 1; i <= 25; i++ {
		rows = append(rows, domain.RawRow{
			"name":     fmt.Sprintf("Material %d", i),
			"price":    fmt.Sprintf("%d.%02d", i*10, i),
			"unit":     "bag",
			"aliases":  fmt.Sprintf("mat %d", i),
			"category": "General",
		})
	}

	first, err := n.NormalizeCatalog(rows, normalizeOpts(1))
	require.NoError(t, err)
	require.Equal(t, 25, first.Catalog.Len())

	exported := make([]domain.RawRow, 0, first.Catalog.Len())
	for _, e := range first.Catalog.Entries() {
		exported = append(exported, domain.RawRow{
			"name":     e.Name,
			"price":    domain.FormatMoney("₹", e.Price),
			"unit":     e.Unit,
			"aliases":  strings.Join(e.Aliases, ", "),
			"category": e.Category,
		})
	}

	second, err := n.NormalizeCatalog(exported, normalizeOpts(2))
	require.NoError(t, err)
	assert.Equal(t, first.Catalog.Entries(), second.Catalog.Entries())
	assert.Zero(t, second.Rejected)
}

func TestNormalizeCatalogDefaultsTimestamp(t *testing.T) {
	before := time.Now().UTC()
	result, err := NewCatalogNormalizer().NormalizeCatalog(
		[]domain.RawRow{{"name": "Cement", "price": "350", "unit": "bag"}},
		NormalizeOptions{Version: 1, Currency: "₹"},
	)
	require.NoError(t, err)
	assert.False(t, result.Catalog.CreatedAt().Before(before))
}
