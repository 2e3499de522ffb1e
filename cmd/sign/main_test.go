package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"
)

func newKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey, []byte) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	return pub, priv, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestParsePrivateKey(t *testing.T) {
	_, priv, pemBytes := newKey(t)

	got, err := parsePrivateKey(pemBytes)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !got.Equal(priv) {
		t.Error("Parsed key does not match")
	}

	if _, err := parsePrivateKey([]byte("not pem")); err == nil {
		t.Error("Expected an error for garbage input")
	}
}

func TestRun(t *testing.T) {
	pub, priv, _ := newKey(t)
	challenge := []byte("0123456789abcdef0123456789abcdef")

	in := strings.NewReader("\n%%%\n" + base64.StdEncoding.EncodeToString(challenge) + "\nquit\nignored\n")
	var out bytes.Buffer
	if err := run(priv, in, &out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Error: invalid base64") {
		t.Errorf("Expected a base64 error, got %q", text)
	}

	i := strings.Index(text, "Signature: ")
	if i < 0 {
		t.Fatalf("Expected a signature, got %q", text)
	}
	sigB64 := strings.Fields(text[i+len("Signature: "):])[0]
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		t.Fatalf("Bad signature encoding %q: %v", sigB64, err)
	}
	if !ed25519.Verify(pub, challenge, sig) {
		t.Error("Signature does not verify")
	}
}
