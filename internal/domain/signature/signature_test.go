package signature

import (
	"testing"
	"testing/quick"
)

func TestVerify(t *testing.T) {
	body := []byte(`{"key": "value"}`)
	secret := "test_secret"
	valid := "n9h4nbtY6kgo0ns104I3W2khZH0lM9oiVLqLlmyeb+U="

	tests := []struct {
		name      string
		body      []byte
		secret    string
		signature string
		want      bool
	}{
		{"known good signature", body, secret, valid, true},
		{"garbage signature", body, secret, "invalid_signature", false},
		{"missing signature", body, secret, "", false},
		{"missing secret", body, "", valid, false},
		{"tampered body", []byte(`{"key": "other"}`), secret, valid, false},
		{"wrong secret", body, "other_secret", valid, false},
		{"hex instead of base64", body, secret, "9fd878", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.body, tt.secret, tt.signature); got != tt.want {
				t.Fatalf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSign_isStable(t *testing.T) {
	body := []byte("payload")
	if Sign(body, "s") != Sign(body, "s") {
		t.Fatal("signature should be deterministic")
	}
	if Sign(body, "s") == Sign([]byte("payload2"), "s") {
		t.Fatal("different bodies should produce different signatures")
	}
}

func TestVerify_acceptsOwnSignature(t *testing.T) {
	prop := func(body []byte, secret string) bool {
		if secret == "" {
			return !Verify(body, secret, Sign(body, secret))
		}
		return Verify(body, secret, Sign(body, secret))
	}
	if err := quick.Check(prop, nil); err != nil {
		t.Fatal(err)
	}
}

func TestVerify_rejectsBodyMutation(t *testing.T) {
	prop := func(body []byte, secret string, pos uint, delta byte) bool {
		if secret == "" || len(body) == 0 {
			return true
		}
		if delta == 0 {
			delta = 1
		}
		sig := Sign(body, secret)

		mutated := append([]byte(nil), body...)
		mutated[pos%uint(len(mutated))] += delta

		return !Verify(mutated, secret, sig)
	}
	if err := quick.Check(prop, nil); err != nil {
		t.Fatal(err)
	}
}

func TestVerify_rejectsSecretMutation(t *testing.T) {
	prop := func(body []byte, secret []byte, pos uint, delta byte) bool {
		if len(secret) == 0 {
			return true
		}
		if delta == 0 {
			delta = 1
		}
		sig := Sign(body, string(secret))

		mutated := append([]byte(nil), secret...)
		mutated[pos%uint(len(mutated))] += delta

		return !Verify(body, string(mutated), sig)
	}
	if err := quick.Check(prop, nil); err != nil {
		t.Fatal(err)
	}
}

func TestVerify_missingInputs(t *testing.T) {
	prop := func(body []byte, secret, sig string) bool {
		return !Verify(body, secret, "") && !Verify(body, "", sig)
	}
	if err := quick.Check(prop, nil); err != nil {
		t.Fatal(err)
	}
}
