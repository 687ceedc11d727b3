package identity

import (
	"errors"
	"testing"
)

func TestValidatePhone(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"+2348011111111", true},
		{"+234 801 111 1111", true},
		{"+1 (415) 555-0100", true},
		{"2348011111111", false},
		{"+0348011111111", false},
		{"+12", false},
		{"+23480111111111111", false},
		{"+23480abc11111", false},
	}
	for _, tc := range cases {
		err := Phone(tc.in).Validate()
		if tc.valid && err != nil {
			t.Fatalf("%q: expected valid, got %v", tc.in, err)
		}
		if !tc.valid && !errors.Is(err, ErrInvalid) {
			t.Fatalf("%q: expected ErrInvalid, got %v", tc.in, err)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	cases := []struct {
		in    string
		valid bool
	}{
		{"user@example.com", true},
		{"  User@Example.COM ", true},
		{"user@example", false},
		{"user example@x.com", false},
		{"@example.com", false},
		{"", false},
	}
	for _, tc := range cases {
		err := Email(tc.in).Validate()
		if tc.valid && err != nil {
			t.Fatalf("%q: expected valid, got %v", tc.in, err)
		}
		if !tc.valid && !errors.Is(err, ErrInvalid) {
			t.Fatalf("%q: expected ErrInvalid, got %v", tc.in, err)
		}
	}
}

func TestKeyIsNormalised(t *testing.T) {
	if got := Email("  User@Example.COM ").Key(); got != "email:user@example.com" {
		t.Fatalf("unexpected email key %q", got)
	}
	if got := Phone("+234 801-111-1111").Key(); got != "phone:+2348011111111" {
		t.Fatalf("unexpected phone key %q", got)
	}
}

func TestUnknownChannelInvalid(t *testing.T) {
	if err := (Ref{Address: "x@y.z"}).Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := ParseChannel("fax"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown tag, got %v", err)
	}
	if c, err := ParseChannel("SMS"); err != nil || c != ChannelPhone {
		t.Fatalf("expected sms to map to phone, got %v %v", c, err)
	}
}

func TestMasked(t *testing.T) {
	if got := Phone("+2348011111111").Masked(); got != "**********1111" {
		t.Fatalf("unexpected masked phone %q", got)
	}
	if got := Email("user@example.com").Masked(); got != "u***@example.com" {
		t.Fatalf("unexpected masked email %q", got)
	}
}
