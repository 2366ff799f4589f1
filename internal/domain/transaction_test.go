package domain

import "testing"

func TestTransactionIsTerminal(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{TransactionStatusPending, false},
		{TransactionStatusCompleted, true},
		{TransactionStatusRejected, true},
	}
	for _, tt := range tests {
		tx := Transaction{Status: tt.status}
		if got := tx.IsTerminal(); got != tt.want {
			t.Fatalf("status %q: expected terminal=%t, got %t", tt.status, tt.want, got)
		}
	}
}

func TestTransactionBalanceDelta(t *testing.T) {
	deposit := Transaction{Type: TransactionTypeDeposit, Amount: 2500}
	if got := deposit.BalanceDelta(); got != 2500 {
		t.Fatalf("expected +2500 for deposit, got %d", got)
	}
	withdrawal := Transaction{Type: TransactionTypeWithdrawal, Amount: 2500}
	if got := withdrawal.BalanceDelta(); got != -2500 {
		t.Fatalf("expected -2500 for withdrawal, got %d", got)
	}
}

func TestRegistrationRequestMissingFields(t *testing.T) {
	full := RegistrationRequest{
		FullName:         "Amina Okafor",
		PhoneNumber:      "0771234567",
		NationalID:       "CM901234567",
		BusinessName:     "Okafor Provisions",
		BusinessLocation: "Central Market",
		TaxStatus:        "informal",
	}
	if missing := full.Profile().MissingFields(); len(missing) != 0 {
		t.Fatalf("expected no missing fields, got %v", missing)
	}

	partial := RegistrationRequest{FullName: "Amina Okafor", TaxStatus: "  "}
	missing := partial.Profile().MissingFields()
	if len(missing) != 5 {
		t.Fatalf("expected 5 missing fields, got %v", missing)
	}
}
