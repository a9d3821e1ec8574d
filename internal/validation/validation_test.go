package validation

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  bool
	}{
		{name: "simple address", email: "alice@example.com", want: true},
		{name: "short domain", email: "a@x.com", want: true},
		{name: "subdomain", email: "bob@mail.example.org", want: true},
		{name: "empty", email: "", want: false},
		{name: "no at sign", email: "alice.example.com", want: false},
		{name: "two at signs", email: "a@b@example.com", want: false},
		{name: "missing local part", email: "@example.com", want: false},
		{name: "no dot in domain", email: "alice@localhost", want: false},
		{name: "trailing dot", email: "alice@example.", want: false},
		{name: "contains space", email: "alice smith@example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidEmail(tt.email); got != tt.want {
				t.Fatalf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestIsValidMobileNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   bool
	}{
		{name: "ten digits", number: "9876543210", want: true},
		{name: "with plus", number: "+79161234567", want: true},
		{name: "fifteen digits", number: "123456789012345", want: true},
		{name: "empty", number: "", want: false},
		{name: "too short", number: "12345", want: false},
		{name: "too long", number: "1234567890123456", want: false},
		{name: "letters", number: "98765abc10", want: false},
		{name: "plus in the middle", number: "9876+543210", want: false},
		{name: "with dashes", number: "987-654-3210", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidMobileNumber(tt.number); got != tt.want {
				t.Fatalf("IsValidMobileNumber(%q) = %v, want %v", tt.number, got, tt.want)
			}
		})
	}
}
