package policy

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"strings"

	"oneshim-edge/internal/agenterr"
)

const (
	ed25519SignatureLen = 64
	ed25519PublicKeyLen = 32
)

// VerifyBundle checks that signatureBytes is a valid detached ed25519
// signature over policyBytes under publicKey. Length violations and
// signature mismatches both return an Internal error carrying a
// "Policy signature verification failed" message, matching the
// preflight contract: any tamper rejects, nothing partially succeeds.
func VerifyBundle(policyBytes, signatureBytes, publicKey []byte) error {
	if len(publicKey) != ed25519PublicKeyLen {
		return agenterr.New(agenterr.Internal, "Policy signature verification failed: public key must be 32 bytes")
	}
	if len(signatureBytes) != ed25519SignatureLen {
		return agenterr.New(agenterr.Internal, "Policy signature verification failed: signature must be 64 bytes")
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), policyBytes, signatureBytes) {
		return agenterr.New(agenterr.Internal, "Policy signature verification failed: signature does not match policy bytes")
	}
	return nil
}

// LoadAndVerifyBundle reads policyPath and its sibling detached
// signature file at signaturePath (first whitespace-delimited token is
// base64 of the ed25519 signature), verifies it against publicKey, and
// returns the policy bytes on success.
func LoadAndVerifyBundle(policyPath, signaturePath string, publicKey []byte) ([]byte, error) {
	policyBytes, err := os.ReadFile(policyPath)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.IO, err, "failed to read policy bundle")
	}

	sigFile, err := os.ReadFile(signaturePath)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.IO, err, "failed to read policy bundle signature")
	}

	token := strings.Fields(string(sigFile))
	if len(token) == 0 {
		return nil, agenterr.New(agenterr.Internal, "Policy signature verification failed: empty signature file")
	}

	sigBytes, err := base64.StdEncoding.DecodeString(token[0])
	if err != nil {
		return nil, agenterr.Wrap(agenterr.Internal, err, "Policy signature verification failed: signature is not valid base64")
	}

	if err := VerifyBundle(policyBytes, sigBytes, publicKey); err != nil {
		return nil, err
	}
	return policyBytes, nil
}

// ValidateCommandToken checks a one-shot server-issued policyToken
// (base64 ed25519 signature over commandID) against publicKey, as the
// Automation Controller's preflight before entering the sandbox for an
// AutomationCommand.
func ValidateCommandToken(publicKey []byte, commandID, policyTokenB64 string) error {
	tokenBytes, err := base64.StdEncoding.DecodeString(policyTokenB64)
	if err != nil {
		return agenterr.Wrap(agenterr.PolicyDenied, err, "policy token is not valid base64")
	}
	if err := VerifyBundle([]byte(commandID), tokenBytes, publicKey); err != nil {
		return agenterr.Wrap(agenterr.PolicyDenied, err, "policy token validation failed")
	}
	return nil
}

// DecodePublicKeyB64 decodes a base64-encoded ed25519 public key,
// validating its length.
func DecodePublicKeyB64(b64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.Config, err, "invalid base64 policy public key")
	}
	if len(key) != ed25519PublicKeyLen {
		return nil, agenterr.New(agenterr.Config, "policy public key must decode to 32 bytes")
	}
	return key, nil
}
