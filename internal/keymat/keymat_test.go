package keymat

import (
	"bytes"
	"strings"
	"testing"
)

func TestGenerateProducesValidSecret(t *testing.T) {
	m, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(m.Secret, Namespace) {
		t.Fatalf("secret %q missing namespace", m.Secret)
	}
	if !IsValidFormat(m.Secret) {
		t.Fatalf("generated secret %q rejected by IsValidFormat", m.Secret)
	}
	if !strings.HasPrefix(m.Secret, strings.TrimSuffix(m.Prefix, "...")) {
		t.Fatalf("prefix %q is not a leading substring of the secret", m.Prefix)
	}
	if !strings.HasSuffix(m.Prefix, "...") {
		t.Fatalf("prefix %q missing ellipsis marker", m.Prefix)
	}
	if m.Hash != Hash(m.Secret) {
		t.Fatalf("hash mismatch: %q vs %q", m.Hash, Hash(m.Secret))
	}
}

func TestGenerateFromIsDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0xAB}, secretEntropyBytes)

	first, err := GenerateFrom(bytes.NewReader(seed))
	if err != nil {
		t.Fatalf("GenerateFrom: %v", err)
	}
	second, err := GenerateFrom(bytes.NewReader(seed))
	if err != nil {
		t.Fatalf("GenerateFrom: %v", err)
	}
	if first != second {
		t.Fatalf("same randomness produced different material: %+v vs %+v", first, second)
	}
}

func TestGenerateFromShortReader(t *testing.T) {
	if _, err := GenerateFrom(bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Fatal("expected error for truncated randomness source")
	}
}

func TestHashIsStable(t *testing.T) {
	const secret = "1lab_sk_0123456789abcdef0123456789abcdef"
	if Hash(secret) != Hash(secret) {
		t.Fatal("hash not deterministic")
	}
	if len(Hash(secret)) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(Hash(secret)))
	}
}

func TestIsValidFormat(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"valid", "1lab_sk_" + strings.Repeat("a", 32), true},
		{"minimum random length", "1lab_sk_" + strings.Repeat("x", 24), true},
		{"url-safe charset", "1lab_sk_abc-DEF_123-xyz_789-qrs_456", true},
		{"empty", "", false},
		{"wrong namespace", "2lab_sk_" + strings.Repeat("a", 32), false},
		{"legacy namespace", "1labs_" + strings.Repeat("a", 64), false},
		{"too short", "1lab_sk_abc123", false},
		{"invalid characters", "1lab_sk_" + strings.Repeat("a", 20) + "!!!!!", false},
		{"namespace only", "1lab_sk_", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidFormat(tt.candidate); got != tt.want {
				t.Errorf("IsValidFormat(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestPrefixShortSecret(t *testing.T) {
	if got := Prefix("abc"); got != "abc" {
		t.Fatalf("Prefix(short) = %q", got)
	}
}
