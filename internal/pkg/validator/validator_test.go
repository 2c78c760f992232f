package validator_test

import (
	"testing"

	"github.com/subkeep/subkeep-api/internal/pkg/validator"
)

func TestMoneyValidation(t *testing.T) {
	valid := []string{"1", "20", "0.5", "19.99", "100000"}
	for _, amount := range valid {
		if err := validator.ValidateVar(amount, "money"); err != nil {
			t.Errorf("expected %q to be valid money: %v", amount, err)
		}
	}

	invalid := []string{"", "-5", "1.234", ".5", "10,50", "abc", "1e3"}
	for _, amount := range invalid {
		if err := validator.ValidateVar(amount, "money"); err == nil {
			t.Errorf("expected %q to be rejected", amount)
		}
	}
}

func TestEntryTypeValidation(t *testing.T) {
	for _, entryType := range []string{"deposit", "purchase", "refund", "withdrawal", "bonus", "refund_reversal", ""} {
		if err := validator.ValidateVar(entryType, "entry_type"); err != nil {
			t.Errorf("expected %q to be a valid entry type: %v", entryType, err)
		}
	}
	if err := validator.ValidateVar("loan", "entry_type"); err == nil {
		t.Error("expected unknown entry type to be rejected")
	}
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	type purchaseBody struct {
		UserID string `json:"user_id" validate:"required,uuid"`
		Amount string `json:"amount" validate:"required,money"`
	}

	errs := validator.Validate(&purchaseBody{UserID: "not-a-uuid", Amount: "-3"})
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if _, ok := errs["user_id"]; !ok {
		t.Fatalf("expected error keyed by json tag, got %v", errs)
	}
	if _, ok := errs["amount"]; !ok {
		t.Fatalf("expected amount error, got %v", errs)
	}

	if errs := validator.Validate(&purchaseBody{UserID: "0191f2e4-5a3b-7c1d-9e8f-1234567890ab", Amount: "19.99"}); errs != nil {
		t.Fatalf("expected valid body, got %v", errs)
	}
}
