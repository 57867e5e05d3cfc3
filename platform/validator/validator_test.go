package validator

import (
	"strings"
	"testing"
)

type draft struct {
	FirstName string `validate:"notblank"`
	Phone     string `validate:"phone_e164"`
}

func TestCustomTags(t *testing.T) {
	v := New()

	if err := v.Struct(draft{FirstName: "Jean", Phone: "+33781602352"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := v.Struct(draft{FirstName: "   ", Phone: "07 81 60 23 52"})
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := Describe(err)
	if !strings.Contains(msg, "FirstName failed notblank") || !strings.Contains(msg, "Phone failed phone_e164") {
		t.Fatalf("unexpected description %q", msg)
	}
}

func TestVarPhoneE164(t *testing.T) {
	v := New()
	tests := []struct {
		in   string
		want bool
	}{
		{"+33781602352", true},
		{"+41781602352", true},
		{"", false},
		{"0781602352", false},
		{"+33 7 81 60 23 52", false},
		{"+33123", false},
	}
	for _, tt := range tests {
		err := v.Var(tt.in, "required,phone_e164")
		if (err == nil) != tt.want {
			t.Fatalf("%q: want valid=%v, got %v", tt.in, tt.want, err)
		}
	}
}
