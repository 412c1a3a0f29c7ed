package scrape

import (
	"strings"
	"time"

	"github.com/voltmarket/catalog-scraper/internal/models"
)

// Rejection names the first validation rule a candidate failed. The empty
// value means the candidate was accepted.
type Rejection string

const (
	RejectNone            Rejection = ""
	RejectNameLength      Rejection = "name_length"
	RejectNoComponent     Rejection = "no_component_keyword"
	RejectDeniedKeyword   Rejection = "denied_keyword"
	RejectWordCount       Rejection = "word_count"
	RejectGenericCategory Rejection = "generic_category"
	RejectPriceRange      Rejection = "price_range"
	RejectStockRange      Rejection = "stock_range"
	RejectSchema          Rejection = "schema"
)

const (
	minNameLen   = 5
	maxNameLen   = 120
	minWordCount = 2
	maxWordCount = 15
	maxPrice     = 10000
)

// allowedKeywords are the component-class terms a valid name must contain.
var allowedKeywords = []string{
	"RESISTOR", "CAPACITOR", "TRANSISTOR", "DIODE", "IC", "LED", "CHIP",
	"RELAY", "SWITCH", "CONNECTOR", "SENSOR", "INDUCTOR", "COIL",
	"POTENTIOMETER", "FUSE", "BATTERY", "WIRE", "CABLE", "REGULATOR",
	"AMPLIFIER", "OSCILLATOR", "CRYSTAL", "ANTENNA", "MOTOR", "SERVO",
	"DISPLAY", "MODULE", "BOARD", "MICROCONTROLLER", "OPTOCOUPLER",
	"PHOTOTRANSISTOR", "PHOTODIODE", "VARISTOR", "THERMISTOR",
	"BUZZER", "SPEAKER", "MICROPHONE", "TERMINAL", "HEADER", "SOCKET",
}

// deniedKeywords are administrative and promotional terms that disqualify a
// name outright.
var deniedKeywords = []string{
	"BID", "SAVE", "PACKAGE", "STOCK CODE", "PART NUMBER", "MANUFACTURER",
	"MOQ", "QTY", "DISCOUNT", "PRICE", "DISPLAYING", "RECORDS", "VAT",
	"EXCLUSIVE", "SUBJECT", "CHANGE", "NOTICE", "RAND", "ZAR", "DELIVERY",
	"ENQUIRE", "BRANCH", "RESTOCKING", "SOON", "UNIT", "EACH", "BULK",
	"NEXT", "LAST", "PAGE", "HOME", "CONTACT", "ABOUT", "VACANCIES",
}

func containsAllowedKeyword(name string) bool {
	upper := strings.ToUpper(name)
	for _, kw := range allowedKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

func containsDeniedKeyword(name string) bool {
	upper := strings.ToUpper(name)
	for _, kw := range deniedKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// categoryRule maps name keywords to one catalog category. Rules are an
// ordered slice, not a map, so inference is deterministic when a name matches
// more than one class.
type categoryRule struct {
	category string
	keywords []string
}

var categoryRules = []categoryRule{
	{"Resistors", []string{"resistor"}},
	{"Capacitors", []string{"capacitor"}},
	{"LEDs & Diodes", []string{"led", "diode", "light emitting"}},
	{"Transistors", []string{"transistor", "mosfet", "fet"}},
	{"Integrated Circuits", []string{"ic ", "integrated circuit", "microcontroller", "arduino", "chip"}},
	{"Sensors", []string{"sensor", "detector", "temperature", "humidity", "motion"}},
	{"Relays", []string{"relay"}},
	{"Switches", []string{"switch", "button", "toggle"}},
	{"Connectors", []string{"connector", "header", "socket", "plug", "jack"}},
	{"Wires & Cables", []string{"wire", "cable", "ribbon", "lead"}},
	{"Tools", []string{"tool", "multimeter", "soldering", "tester"}},
	{"Power Supplies", []string{"power", "battery", "supply", "adapter", "charger", "regulator"}},
	{"Displays", []string{"display", "lcd", "oled", "screen", "segment"}},
	{"Motors", []string{"motor", "servo", "stepper", "actuator"}},
	{"Audio", []string{"audio", "speaker", "amplifier", "microphone"}},
	{"RF & Wireless", []string{"rf", "wireless", "antenna", "bluetooth", "wifi", "gsm"}},
	{"Optoelectronics", []string{"opto", "phototransistor", "photodiode", "coupler"}},
	{"Crystals & Oscillators", []string{"crystal", "oscillator", "resonator"}},
	{"Fuses & Circuit Protection", []string{"fuse", "circuit breaker", "varistor", "protector"}},
}

// InferCategory maps a cleaned product name to a catalog category, or the
// catch-all when nothing matches.
func InferCategory(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return models.CatchAllCategory
}

// Validator applies the output schema contract. Validation is all-or-nothing:
// the first failing rule determines the rejection reason and no partial
// record is returned.
type Validator struct {
	sourceDomain string
	now          func() time.Time
}

func NewValidator(sourceDomain string) *Validator {
	return &Validator{sourceDomain: sourceDomain, now: time.Now}
}

// Validate checks a candidate and constructs the immutable validated record.
// It is a pure predicate over the candidate: same input, same outcome.
func (v *Validator) Validate(c models.CandidateRecord) (models.Product, Rejection) {
	name := strings.TrimSpace(c.Name)

	if len(name) < minNameLen || len(name) > maxNameLen {
		return models.Product{}, RejectNameLength
	}
	if !containsAllowedKeyword(name) {
		return models.Product{}, RejectNoComponent
	}
	if containsDeniedKeyword(name) {
		return models.Product{}, RejectDeniedKeyword
	}
	if words := len(strings.Fields(name)); words < minWordCount || words > maxWordCount {
		return models.Product{}, RejectWordCount
	}

	category := InferCategory(name)
	if category == models.CatchAllCategory {
		return models.Product{}, RejectGenericCategory
	}

	if c.Price <= 0 || c.Price > maxPrice {
		return models.Product{}, RejectPriceRange
	}
	if c.Stock <= 0 {
		return models.Product{}, RejectStockRange
	}

	// Cross-field re-check before the record is sealed.
	if len(category) < 3 || name == "" {
		return models.Product{}, RejectSchema
	}

	description := strings.TrimSpace(c.Description)
	if description == "" {
		description = "Electronic component: " + name
	}
	if len(c.RawFragments) > 0 {
		description += ". " + strings.Join(c.RawFragments, " ")
	}

	specs := MineSpecifications(name)
	specs["imported_from"] = v.sourceDomain
	specs["import_date"] = v.now().UTC().Format(time.RFC3339)
	specs["product_type"] = "electronic_component"

	return models.Product{
		Name:           name,
		Description:    description,
		Category:       category,
		Brand:          models.Brand,
		Price:          c.Price,
		StockQuantity:  c.Stock,
		Specifications: specs,
		NaturalKey:     models.DeriveNaturalKey(c.StockCode, name),
		SourceURL:      c.SourceURL,
		ExtractedAt:    v.now().UTC(),
	}, RejectNone
}
