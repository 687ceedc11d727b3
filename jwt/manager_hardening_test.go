package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestReceiptRoundTrip(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, PrivateKey: priv, PublicKey: pub, Issuer: "signin"}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.CreateReceipt(Receipt{
		IdentityKey: "email:user@example.com",
		Channel:     "email",
		Flow:        "business",
		Trusted:     true,
		StepUp:      "confirmed",
	})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}

	claims, err := m.ParseReceipt(token)
	if err != nil {
		t.Fatalf("parse receipt: %v", err)
	}
	if claims.Subject != "email:user@example.com" || claims.Flow != "business" || !claims.Trusted || claims.StepUp != "confirmed" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected receipt id")
	}
}

func TestParseReceiptRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := ReceiptClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "phone:+2348011111111",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseReceipt(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseReceiptIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	now := time.Now()
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "signin",
		Audience:      "wallet-api",
		Leeway:        30 * time.Second,
	}, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.CreateReceipt(Receipt{IdentityKey: "phone:+2348011111111", Channel: "phone", Flow: "personal"})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	if _, err := m.ParseReceipt(token); err != nil {
		t.Fatalf("expected valid receipt to parse: %v", err)
	}

	now = now.Add(time.Minute + 15*time.Second)
	if _, err := m.ParseReceipt(token); err != nil {
		t.Fatalf("expected receipt within leeway to pass: %v", err)
	}
	now = now.Add(time.Minute)
	if _, err := m.ParseReceipt(token); err == nil {
		t.Fatal("expected expired receipt to fail")
	}

	wrongIssuer := ReceiptClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "phone:+2348011111111",
		Issuer:    "other",
		Audience:  gjwt.ClaimStrings{"wallet-api"},
		ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(now),
	}}
	badIssuer, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrongIssuer).SignedString(priv)
	if _, err := m.ParseReceipt(badIssuer); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	wrongAudience := ReceiptClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "phone:+2348011111111",
		Issuer:    "signin",
		Audience:  gjwt.ClaimStrings{"other-api"},
		ExpiresAt: gjwt.NewNumericDate(now.Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(now),
	}}
	badAudience, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrongAudience).SignedString(priv)
	if _, err := m.ParseReceipt(badAudience); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
}

func TestParseReceiptUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:        time.Minute,
		PrivateKey: priv1,
		PublicKey:  pub1,
		KeyID:      "k1",
		VerifyKeys: map[string][]byte{"k1": pub1},
	}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := ReceiptClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "phone:+2348011111111",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, _ := tok.SignedString(priv1)
	if _, err := m.ParseReceipt(token); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, err := m.CreateReceipt(Receipt{IdentityKey: "phone:+2348011111111"})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	if _, err := m.ParseReceipt(good); err != nil {
		t.Fatalf("expected known kid receipt to pass: %v", err)
	}

	m2, _ := NewManager(Config{TTL: time.Minute, PublicKey: pub2, VerifyKeys: map[string][]byte{"k1": pub2}}, nil)
	if _, err := m2.ParseReceipt(good); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}

func TestVerifyOnlyManagerCannotSign(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, PublicKey: pub}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if m.CanSign() {
		t.Fatal("expected verify-only manager")
	}
	if _, err := m.CreateReceipt(Receipt{IdentityKey: "k"}); err == nil {
		t.Fatal("expected create to fail without private key")
	}
}

func TestHS256Receipt(t *testing.T) {
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef0123456789abcdef")}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, err := m.CreateReceipt(Receipt{IdentityKey: "email:user@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.ParseReceipt(token); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	pub, _ := newEdKeys(t)
	cases := []Config{
		{TTL: 0, PublicKey: pub},
		{TTL: time.Minute, Leeway: 5 * time.Minute, PublicKey: pub},
		{TTL: time.Minute},
		{TTL: time.Minute, SigningMethod: MethodHS256},
		{TTL: time.Minute, SigningMethod: "rs256", PublicKey: pub},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg, nil); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
