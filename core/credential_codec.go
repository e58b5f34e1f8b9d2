package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	CredentialPayloadFormatBundleJSON = "credential_bundle_json"
	CredentialPayloadVersionV1        = 1
)

// CredentialCodec serializes a bundle before it is encrypted at rest.
type CredentialCodec interface {
	Format() string
	Version() int
	Encode(bundle CredentialBundle) ([]byte, error)
	Decode(payload []byte) (CredentialBundle, error)
}

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatBundleJSON
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonCredentialPayload struct {
	Version int               `json:"v"`
	Fields  map[string]string `json:"fields"`
}

func (c JSONCredentialCodec) Encode(bundle CredentialBundle) ([]byte, error) {
	fields := make(map[string]string, len(bundle))
	for key, value := range bundle {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fields[key] = value
	}
	encoded, err := json.Marshal(jsonCredentialPayload{Version: c.Version(), Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (c JSONCredentialCodec) Decode(payload []byte) (CredentialBundle, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("core: decode credential payload: %w", err)
	}
	if decoded.Version != c.Version() {
		return nil, fmt.Errorf("core: unsupported credential payload version %d", decoded.Version)
	}
	bundle := make(CredentialBundle, len(decoded.Fields))
	for key, value := range decoded.Fields {
		bundle[key] = value
	}
	return bundle, nil
}
