package model

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Role
		wantErr bool
	}{
		{name: "admin", input: "admin", want: RoleAdmin},
		{name: "customer", input: "customer", want: RoleCustomer},
		{name: "empty defaults to customer", input: "", want: RoleCustomer},
		{name: "unknown role", input: "superuser", wantErr: true},
		{name: "case sensitive", input: "Admin", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRole(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRole(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTotalCents(t *testing.T) {
	// Pizza 10.99 ×1 + Burger 6.99 ×2 = 24.97
	lines := []CartLine{
		{FoodID: 1, Name: "Pizza", Price: 1099, Quantity: 1},
		{FoodID: 2, Name: "Burger", Price: 699, Quantity: 2},
	}

	if got := TotalCents(lines); got != 2497 {
		t.Fatalf("TotalCents = %d, want 2497", got)
	}
}

func TestTotalCents_Empty(t *testing.T) {
	if got := TotalCents(nil); got != 0 {
		t.Fatalf("TotalCents(nil) = %d, want 0", got)
	}
}

func TestCentsToFloat(t *testing.T) {
	if got := CentsToFloat(2497); got != 24.97 {
		t.Fatalf("CentsToFloat(2497) = %v, want 24.97", got)
	}
	if got := CentsToFloat(0); got != 0 {
		t.Fatalf("CentsToFloat(0) = %v, want 0", got)
	}
}
