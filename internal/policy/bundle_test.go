package policy

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oneshim-edge/internal/agenterr"
)

func TestVerifyBundleAcceptsValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	policyBytes := []byte(`{"policies":[]}`)
	sig := ed25519.Sign(priv, policyBytes)

	if err := VerifyBundle(policyBytes, sig, pub); err != nil {
		t.Fatalf("expected valid signature to verify, got %v", err)
	}
}

// TestScenarioS5 is the exact signed-policy-bundle tamper scenario:
// preflight succeeds against bytesA, then fails after the policy file
// is mutated to bytesB while the signature (still over bytesA) is
// unchanged.
func TestScenarioS5(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	bytesA := []byte(`{"policies":[{"process_name":"notepad.exe"}]}`)
	sig := ed25519.Sign(priv, bytesA)

	if err := VerifyBundle(bytesA, sig, pub); err != nil {
		t.Fatalf("expected preflight to succeed against bytesA, got %v", err)
	}

	bytesB := []byte(`{"policies":[{"process_name":"cmd.exe"}]}`)
	err = VerifyBundle(bytesB, sig, pub)
	if err == nil {
		t.Fatal("expected preflight to fail after policy file was mutated")
	}
	if !agenterr.Is(err, agenterr.Internal) {
		t.Fatalf("expected Internal error kind, got %v", agenterr.KindOf(err))
	}
	if !strings.Contains(err.Error(), "Policy signature verification failed") {
		t.Fatalf("expected mismatch message, got %v", err)
	}
}

func TestVerifyBundleRejectsWrongKeyLength(t *testing.T) {
	policyBytes := []byte("data")
	sig := make([]byte, ed25519SignatureLen)
	shortKey := make([]byte, 16)
	if err := VerifyBundle(policyBytes, sig, shortKey); err == nil {
		t.Fatal("expected error for wrong-length public key")
	}
}

func TestVerifyBundleRejectsWrongSignatureLength(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	if err := VerifyBundle([]byte("data"), []byte("short"), pub); err == nil {
		t.Fatal("expected error for wrong-length signature")
	}
}

func TestLoadAndVerifyBundleRoundTrip(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	dir := t.TempDir()

	policyBytes := []byte(`{"policies":[]}`)
	sig := ed25519.Sign(priv, policyBytes)

	policyPath := filepath.Join(dir, "policy.json")
	sigPath := filepath.Join(dir, "policy.json.sig")
	if err := os.WriteFile(policyPath, policyBytes, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(sigPath, []byte(base64.StdEncoding.EncodeToString(sig)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadAndVerifyBundle(policyPath, sigPath, pub)
	if err != nil {
		t.Fatalf("expected round trip to succeed, got %v", err)
	}
	if string(got) != string(policyBytes) {
		t.Fatalf("expected returned bytes to match policy file, got %q", got)
	}
}

func TestValidateCommandTokenAcceptsValidToken(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	commandID := "cmd-123"
	sig := ed25519.Sign(priv, []byte(commandID))
	token := base64.StdEncoding.EncodeToString(sig)

	if err := ValidateCommandToken(pub, commandID, token); err != nil {
		t.Fatalf("expected valid token to pass, got %v", err)
	}
}

func TestValidateCommandTokenRejectsWrongCommand(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	sig := ed25519.Sign(priv, []byte("cmd-123"))
	token := base64.StdEncoding.EncodeToString(sig)

	if err := ValidateCommandToken(pub, "cmd-456", token); err == nil {
		t.Fatal("expected token signed for a different command to be rejected")
	}
}

func TestDecodePublicKeyB64RejectsWrongLength(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("tooshort"))
	if _, err := DecodePublicKeyB64(short); err == nil {
		t.Fatal("expected error for short decoded key")
	}
}

func TestDecodePublicKeyB64Valid(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	encoded := base64.StdEncoding.EncodeToString(pub)
	got, err := DecodePublicKeyB64(encoded)
	if err != nil {
		t.Fatalf("expected valid key to decode, got %v", err)
	}
	if len(got) != ed25519PublicKeyLen {
		t.Fatalf("expected 32-byte key, got %d", len(got))
	}
}
