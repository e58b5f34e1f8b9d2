package security

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Sealed credentials are stored as a single PHC-style text column:
//
//	$costhook$aes-256-gcm$kid=<key id>,ver=<version>$<nonce>$<ciphertext>
//
// Nonce and ciphertext are unpadded base64url.
const (
	envelopePrefix    = "$costhook$"
	envelopeAlgorithm = "aes-256-gcm"
	envelopeSeparator = "$"
)

var payloadEncoding = base64.RawURLEncoding

type envelope struct {
	KeyID      string
	Version    int
	Algorithm  string
	Nonce      []byte
	Ciphertext []byte
}

// EnvelopeMetadata describes which key sealed a ciphertext without opening it.
type EnvelopeMetadata struct {
	KeyID     string
	Version   int
	Algorithm string
}

func ParseEnvelopeMetadata(ciphertext []byte) (EnvelopeMetadata, error) {
	env, err := decodeEnvelope(ciphertext)
	if err != nil {
		return EnvelopeMetadata{}, err
	}
	return EnvelopeMetadata{
		KeyID:     env.KeyID,
		Version:   env.Version,
		Algorithm: env.Algorithm,
	}, nil
}

func validKeyID(keyID string) bool {
	return keyID != "" && !strings.ContainsAny(keyID, envelopeSeparator+",= \t\n")
}

func encodeEnvelope(env envelope) ([]byte, error) {
	if !validKeyID(env.KeyID) {
		return nil, fmt.Errorf("security: key id %q cannot be encoded", env.KeyID)
	}
	var b strings.Builder
	b.WriteString(envelopePrefix)
	b.WriteString(env.Algorithm)
	b.WriteString(envelopeSeparator)
	fmt.Fprintf(&b, "kid=%s,ver=%d", env.KeyID, env.Version)
	b.WriteString(envelopeSeparator)
	b.WriteString(payloadEncoding.EncodeToString(env.Nonce))
	b.WriteString(envelopeSeparator)
	b.WriteString(payloadEncoding.EncodeToString(env.Ciphertext))
	return []byte(b.String()), nil
}

func decodeEnvelope(ciphertext []byte) (envelope, error) {
	if len(ciphertext) == 0 {
		return envelope{}, fmt.Errorf("security: ciphertext is required")
	}
	payload, ok := strings.CutPrefix(string(ciphertext), envelopePrefix)
	if !ok {
		return envelope{}, fmt.Errorf("security: invalid ciphertext envelope prefix")
	}
	parts := strings.Split(payload, envelopeSeparator)
	if len(parts) != 4 {
		return envelope{}, fmt.Errorf("security: envelope has %d segments, want 4", len(parts))
	}

	env := envelope{Algorithm: strings.ToLower(parts[0])}
	if env.Algorithm != envelopeAlgorithm {
		return envelope{}, fmt.Errorf("security: unsupported envelope algorithm %q", parts[0])
	}
	if err := parseKeyParams(parts[1], &env); err != nil {
		return envelope{}, err
	}
	var err error
	if env.Nonce, err = decodePayload("nonce", parts[2]); err != nil {
		return envelope{}, err
	}
	if env.Ciphertext, err = decodePayload("ciphertext", parts[3]); err != nil {
		return envelope{}, err
	}
	return env, nil
}

func parseKeyParams(raw string, env *envelope) error {
	for param := range strings.SplitSeq(raw, ",") {
		name, value, _ := strings.Cut(param, "=")
		switch name {
		case "kid":
			env.KeyID = value
		case "ver":
			version, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("security: invalid envelope version %q", value)
			}
			env.Version = version
		}
	}
	if !validKeyID(env.KeyID) {
		return fmt.Errorf("security: envelope key id is required")
	}
	return nil
}

func decodePayload(name, value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("security: envelope %s is required", name)
	}
	decoded, err := payloadEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("security: decode envelope %s: %w", name, err)
	}
	return decoded, nil
}
