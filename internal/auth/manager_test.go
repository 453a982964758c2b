package auth

import (
	"strings"
	"testing"
	"time"
)

func TestIssueAndValidateToken(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.IssueToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	subject, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("subject = %q, want user-1", subject)
	}
}

func TestIssueTokenRequiresSubject(t *testing.T) {
	m := NewManager("test-secret")
	if _, err := m.IssueToken("", time.Minute); err == nil {
		t.Fatal("empty subject accepted")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	m := NewManager("test-secret")
	token, err := m.IssueToken("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Fatal("expired token validated")
	}
}

func TestValidateTokenTampered(t *testing.T) {
	m := NewManager("test-secret")
	token, err := m.IssueToken("user-1", time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	cases := []string{
		"",
		"garbage",
		token + "x",
		strings.Replace(token, ".", "x", 1),
	}
	for _, bad := range cases {
		if _, err := m.ValidateToken(bad); err == nil {
			t.Fatalf("token %q validated", bad)
		}
	}

	// A token signed with a different secret must not validate.
	other := NewManager("other-secret")
	foreign, _ := other.IssueToken("user-1", time.Minute)
	if _, err := m.ValidateToken(foreign); err == nil {
		t.Fatal("foreign-signed token validated")
	}
}

func TestNewManagerPanicsOnEmptySecret(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("no panic on empty secret")
		}
	}()
	NewManager("")
}

func TestWebhookVerifier(t *testing.T) {
	v := NewWebhookVerifier("whsec-test")
	body := []byte(`{"event":"checkout.completed"}`)

	sig := v.Sign(body)
	if !v.Verify(body, sig) {
		t.Fatal("valid signature rejected")
	}
	if !v.Verify(body, "  "+sig+"\n") {
		t.Fatal("whitespace-padded signature rejected")
	}
	if v.Verify(body, "deadbeef") {
		t.Fatal("wrong signature accepted")
	}
	if v.Verify(body, "not-hex") {
		t.Fatal("non-hex signature accepted")
	}
	if v.Verify([]byte(`{"event":"tampered"}`), sig) {
		t.Fatal("signature accepted for altered body")
	}
}
