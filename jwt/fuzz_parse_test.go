package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

// FuzzParseReceipt feeds arbitrary strings to the receipt parser.
// Invalid inputs must be rejected with errors, never panics.
func FuzzParseReceipt(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	mgr, err := NewManager(Config{
		TTL:           5 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "fuzz-test",
		Leeway:        30 * time.Second,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub},
	}, nil)
	if err != nil {
		f.Fatal(err)
	}

	validToken, err := mgr.CreateReceipt(Receipt{IdentityKey: "phone:+2348011111111", Channel: "phone", Flow: "personal"})
	if err != nil {
		f.Fatal(err)
	}

	f.Add(validToken)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJFZERTQSJ9.eyJ1aWQiOiJ0ZXN0In0.invalid")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.ParseReceipt(input)
		if err != nil {
			return
		}
		if claims == nil {
			t.Fatal("ParseReceipt returned nil claims without error")
		}
	})
}
