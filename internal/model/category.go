package model

import (
	"fmt"
	"strings"
)

// Category is an enumerated kind of personally identifiable or financial data.
type Category string

// Finding categories.
const (
	CategoryAadhaar          Category = "aadhaar"
	CategoryPAN              Category = "pan"
	CategoryPhone            Category = "phone"
	CategoryEmail            Category = "email"
	CategoryBankAccount      Category = "bank-account"
	CategoryCreditCard       Category = "credit-card"
	CategoryPassport         Category = "passport"
	CategoryOtherGovID       Category = "other-government-id"
	CategoryGenericSensitive Category = "generic-sensitive"
)

// AllCategories lists every category in a stable order.
var AllCategories = []Category{
	CategoryAadhaar,
	CategoryPAN,
	CategoryPhone,
	CategoryEmail,
	CategoryBankAccount,
	CategoryCreditCard,
	CategoryPassport,
	CategoryOtherGovID,
	CategoryGenericSensitive,
}

// categoryAliases maps labels commonly produced by AI classifiers onto categories.
var categoryAliases = map[string]Category{
	"aadhaar":             CategoryAadhaar,
	"aadhar":              CategoryAadhaar,
	"uidai":               CategoryAadhaar,
	"pan":                 CategoryPAN,
	"pan_card":            CategoryPAN,
	"phone":               CategoryPhone,
	"mobile":              CategoryPhone,
	"telecom":             CategoryPhone,
	"email":               CategoryEmail,
	"e-mail":              CategoryEmail,
	"bank-account":        CategoryBankAccount,
	"bank_account":        CategoryBankAccount,
	"banking":             CategoryBankAccount,
	"ifsc":                CategoryBankAccount,
	"credit-card":         CategoryCreditCard,
	"credit_card":         CategoryCreditCard,
	"card":                CategoryCreditCard,
	"passport":            CategoryPassport,
	"other-government-id": CategoryOtherGovID,
	"government_id":       CategoryOtherGovID,
	"government-id":       CategoryOtherGovID,
	"voter_id":            CategoryOtherGovID,
	"driving_license":     CategoryOtherGovID,
	"generic-sensitive":   CategoryGenericSensitive,
	"other_pii":           CategoryGenericSensitive,
	"credentials":         CategoryGenericSensitive,
}

// ParseCategory resolves a category name or a known alias, ignoring case.
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, " ", "_")
	if c, ok := categoryAliases[key]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
