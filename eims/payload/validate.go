package payload

import (
	"fmt"
	"strings"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/model"
)

// TransactionType derives B2B or B2C from the buyer classification.
func TransactionType(buyer model.Party) (string, error) {
	switch buyer.Kind {
	case model.Organization:
		return "B2B", nil
	case model.Individual:
		return "B2C", nil
	}
	return "", api.NewClassificationError("buyer.kind", fmt.Sprintf("buyer must be an organization or an individual, got %q", buyer.Kind))
}

// IsPlaceholder catches the filler values users type into required fields.
func IsPlaceholder(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "n/a", "na", "-", "--", "none", "null", "nil", ".":
		return true
	}
	return v != "" && strings.Trim(v, "0") == ""
}

func validTIN(tin string) bool {
	if len(tin) != 10 || IsPlaceholder(tin) {
		return false
	}
	for _, r := range tin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ValidateDocument runs every local check, so nothing malformed is signed or
// sent.
func ValidateDocument(doc *model.Document) error {

	if strings.TrimSpace(doc.Seller.LegalName) == "" || IsPlaceholder(doc.Seller.LegalName) {
		return api.NewValidationError("seller.legalName", "seller legal name is required")
	}
	if !validTIN(doc.Seller.TIN) {
		return api.NewValidationError("seller.tin", fmt.Sprintf("seller TIN must be 10 digits, got %q", doc.Seller.TIN))
	}

	if _, err := TransactionType(doc.Buyer); err != nil {
		return err
	}
	if strings.TrimSpace(doc.Buyer.LegalName) == "" || IsPlaceholder(doc.Buyer.LegalName) {
		return api.NewValidationError("buyer.legalName", "buyer legal name is required")
	}
	switch {
	case doc.Buyer.Kind == model.Organization && !validTIN(doc.Buyer.TIN):
		return api.NewValidationError("buyer.tin", fmt.Sprintf("organization buyer needs a 10 digit TIN, got %q", doc.Buyer.TIN))
	case doc.Buyer.TIN != "" && !validTIN(doc.Buyer.TIN):
		return api.NewValidationError("buyer.tin", fmt.Sprintf("invalid buyer TIN %q", doc.Buyer.TIN))
	}
	if doc.Buyer.IDNumber != "" && IsPlaceholder(doc.Buyer.IDNumber) {
		return api.NewValidationError("buyer.idNumber", fmt.Sprintf("placeholder id number %q", doc.Buyer.IDNumber))
	}

	if len(doc.Lines) == 0 {
		return api.NewValidationError("lines", "document has no line items")
	}
	for i, l := range doc.Lines {
		field := func(name string) string { return fmt.Sprintf("lines[%d].%s", i, name) }
		if strings.TrimSpace(l.Description) == "" {
			return api.NewValidationError(field("description"), "description is required")
		}
		if !l.Quantity.IsPositive() {
			return api.NewValidationError(field("quantity"), "quantity must be positive")
		}
		if l.UnitPrice.IsNegative() {
			return api.NewValidationError(field("unitPrice"), "unit price must not be negative")
		}
		if l.DiscountPercent.IsNegative() || l.DiscountPercent.GreaterThan(hundred) {
			return api.NewValidationError(field("discountPercent"), "discount must be between 0 and 100")
		}
		if l.TaxRate.IsNegative() {
			return api.NewValidationError(field("taxRate"), "tax rate must not be negative")
		}
		if l.ExciseRate != nil && !ValidExciseRate(*l.ExciseRate) {
			return api.NewValidationError(field("exciseRate"), fmt.Sprintf("excise rate %s is not one of 0, 5, 10, 12, 18", l.ExciseRate))
		}
	}
	return nil
}
