package payload

import (
	"strings"

	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/shopspring/decimal"
)

var (
	hundred         = decimal.NewFromInt(100)
	withholdingRate = decimal.NewFromInt(3)
)

// LineValues are the computed monetary fields of one line item.
type LineValues struct {
	Gross       decimal.Decimal
	Discount    decimal.Decimal
	PreTax      decimal.Decimal
	Excise      decimal.Decimal
	Tax         decimal.Decimal
	Withholding decimal.Decimal
	Total       decimal.Decimal
}

// Totals are document level sums of the line values.
type Totals struct {
	Discount    decimal.Decimal
	Excise      decimal.Decimal
	PreTax      decimal.Decimal
	Tax         decimal.Decimal
	Withholding decimal.Decimal
	Total       decimal.Decimal
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func percent(base, rate decimal.Decimal) decimal.Decimal {
	return round2(base.Mul(rate).Div(hundred))
}

// ComputeLine rounds to 2 places after every monetary step. Excise is taken
// from the pre-discount amount, taxed, and then added back to the tax.
func ComputeLine(l model.LineItem) LineValues {
	var v LineValues

	v.Gross = round2(l.UnitPrice.Mul(l.Quantity))
	v.PreTax = round2(v.Gross.Mul(hundred.Sub(l.DiscountPercent)).Div(hundred))
	v.Discount = v.Gross.Sub(v.PreTax)

	if l.ExciseRate != nil {
		v.Excise = percent(v.Gross, *l.ExciseRate)
	}

	v.Tax = percent(v.PreTax.Add(v.Excise), l.TaxRate).Add(v.Excise)

	if l.Withholding {
		v.Withholding = percent(v.PreTax, withholdingRate)
	}

	v.Total = v.PreTax.Add(v.Tax)
	return v
}

func ComputeTotals(lines []model.LineItem) (Totals, []LineValues) {
	var t Totals
	values := make([]LineValues, len(lines))
	for i, l := range lines {
		v := ComputeLine(l)
		values[i] = v
		t.Discount = t.Discount.Add(v.Discount)
		t.Excise = t.Excise.Add(v.Excise)
		t.PreTax = t.PreTax.Add(v.PreTax)
		t.Tax = t.Tax.Add(v.Tax)
		t.Withholding = t.Withholding.Add(v.Withholding)
		t.Total = t.Total.Add(v.Total)
	}
	return t, values
}

// Registry tax codes.
const (
	TaxCodeVAT15  = "VAT15"
	TaxCodeVAT0   = "VAT0"
	TaxCodeExempt = "EXEMPT"
)

// TaxCode matches keywords of the tax description. Lines without a
// description are described by their rate.
func TaxCode(l model.LineItem) string {
	desc := strings.ToLower(strings.TrimSpace(l.TaxDescription))
	if desc == "" {
		desc = l.TaxRate.String() + "%"
	}
	switch {
	case strings.Contains(desc, "exempt"):
		return TaxCodeExempt
	case strings.Contains(desc, "15"):
		return TaxCodeVAT15
	case strings.Contains(desc, "0%"), strings.Contains(desc, "zero"):
		return TaxCodeVAT0
	}
	return TaxCodeVAT0
}

var units = map[string]bool{
	"LTR": true, "MTR": true, "101": true, "PCS": true, "ROL": true,
	"MTS": true, "PKG": true, "SET": true, "KLG": true,
}

// Unit maps the line unit onto the registry whitelist, PCS otherwise.
func Unit(u string) string {
	u = strings.ToUpper(strings.TrimSpace(u))
	if units[u] {
		return u
	}
	return "PCS"
}

var harmonizationCodes = map[int64]string{
	0:  "10061010",
	5:  "2011000",
	10: "8052010",
	12: "1012100",
	18: "6029000",
}

// ValidExciseRate reports whether the rate is one of 0, 5, 10, 12 or 18.
func ValidExciseRate(rate decimal.Decimal) bool {
	if !rate.IsInteger() {
		return false
	}
	_, ok := harmonizationCodes[rate.IntPart()]
	return ok
}

func HarmonizationCode(excise *decimal.Decimal) string {
	if excise == nil || !excise.IsInteger() {
		return ""
	}
	return harmonizationCodes[excise.IntPart()]
}
