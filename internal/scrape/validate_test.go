package scrape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmarket/catalog-scraper/internal/models"
)

func testValidator() *Validator {
	v := NewValidator("mantech.co.za")
	v.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return v
}

func validCandidate() models.CandidateRecord {
	return models.CandidateRecord{
		Name:      "RESISTOR CARBON FILM 1/4W 1K0 5%",
		SourceURL: "https://mantech.co.za/ProductInfo.aspx?Item=123",
		StockCode: "RES-1K0",
		Price:     1.50,
		Stock:     10,
	}
}

func TestValidateAcceptsWellFormedCandidate(t *testing.T) {
	rec, rejection := testValidator().Validate(validCandidate())
	require.Equal(t, RejectNone, rejection)

	assert.Equal(t, "RESISTOR CARBON FILM 1/4W 1K0 5%", rec.Name)
	assert.Equal(t, "Resistors", rec.Category)
	assert.Equal(t, "Mantech", rec.Brand)
	assert.Equal(t, 1.50, rec.Price)
	assert.Equal(t, 10, rec.StockQuantity)
	assert.Equal(t, "mantech:res-1k0", rec.NaturalKey)
	assert.Equal(t, "Electronic component: RESISTOR CARBON FILM 1/4W 1K0 5%", rec.Description)
	assert.Equal(t, "mantech.co.za", rec.Specifications["imported_from"])
	assert.Equal(t, "electronic_component", rec.Specifications["product_type"])
	assert.NotEmpty(t, rec.Specifications["import_date"])
	assert.False(t, rec.ExtractedAt.IsZero())
}

func TestValidateRejectionReasons(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.CandidateRecord)
		expected Rejection
	}{
		{
			name:     "Name too short",
			mutate:   func(c *models.CandidateRecord) { c.Name = "LED" },
			expected: RejectNameLength,
		},
		{
			name: "Name too long",
			mutate: func(c *models.CandidateRecord) {
				long := "RESISTOR"
				for len(long) <= 120 {
					long += " NETWORK"
				}
				c.Name = long
			},
			expected: RejectNameLength,
		},
		{
			name:     "No component keyword",
			mutate:   func(c *models.CandidateRecord) { c.Name = "MYSTERY ITEM OF THE WEEK" },
			expected: RejectNoComponent,
		},
		{
			name:     "Administrative keyword in name",
			mutate:   func(c *models.CandidateRecord) { c.Name = "RESISTOR KIT BULK DISCOUNT" },
			expected: RejectDeniedKeyword,
		},
		{
			name:     "Single-word name",
			mutate:   func(c *models.CandidateRecord) { c.Name = "RESISTORS" },
			expected: RejectWordCount,
		},
		{
			name:     "Name maps only to the catch-all category",
			mutate:   func(c *models.CandidateRecord) { c.Name = "BUZZER PIEZO 12 VDC" },
			expected: RejectGenericCategory,
		},
		{
			name:     "Zero price",
			mutate:   func(c *models.CandidateRecord) { c.Price = 0 },
			expected: RejectPriceRange,
		},
		{
			name:     "Price above ceiling",
			mutate:   func(c *models.CandidateRecord) { c.Price = 10000.01 },
			expected: RejectPriceRange,
		},
		{
			name:     "Zero stock",
			mutate:   func(c *models.CandidateRecord) { c.Stock = 0 },
			expected: RejectStockRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandidate()
			tt.mutate(&c)
			_, rejection := testValidator().Validate(c)
			assert.Equal(t, tt.expected, rejection)
		})
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	v := testValidator()
	c := validCandidate()

	first, rej1 := v.Validate(c)
	second, rej2 := v.Validate(c)

	assert.Equal(t, rej1, rej2)
	assert.Equal(t, first, second)
}

func TestValidateAppendsTechnicalFragments(t *testing.T) {
	c := validCandidate()
	c.Description = "Carbon film resistor"
	c.RawFragments = []string{"Tolerance 5%", "Power rating 0.25W"}

	rec, rejection := testValidator().Validate(c)
	require.Equal(t, RejectNone, rejection)
	assert.Equal(t, "Carbon film resistor. Tolerance 5% Power rating 0.25W", rec.Description)
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"RESISTOR CARBON FILM 1/4W", "Resistors"},
		{"CAPACITOR CERAMIC 10NF 50V", "Capacitors"},
		{"LED RED 5MM DIFFUSED", "LEDs & Diodes"},
		{"TRANSISTOR NPN BC547", "Transistors"},
		{"RELAY 12V DPDT 5A", "Relays"},
		{"CRYSTAL 16MHZ HC-49S", "Crystals & Oscillators"},
		{"WIDGET OF UNKNOWN KIND", models.CatchAllCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferCategory(tt.name))
		})
	}
}

func TestInferCategoryPrefersEarlierRule(t *testing.T) {
	// "resistor" and "power" both match; the resistor rule comes first.
	assert.Equal(t, "Resistors", InferCategory("RESISTOR POWER WIREWOUND 10W"))
}
