package repos

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// schemaVersion is written into every stored document. Version 0 is the
// legacy layout: a bare JSON array without an envelope.
const schemaVersion = 1

var errUnsupportedVersion = errors.New("unsupported schema version")

type envelope struct {
	Version int             `json:"v"`
	Items   json.RawMessage `json:"items"`
}

func encodeEnvelope(items interface{}) ([]byte, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: schemaVersion, Items: raw})
}

// decodeEnvelope returns the raw items of a stored document and the version
// it was written with.
func decodeEnvelope(data []byte) ([]json.RawMessage, int, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, 0, errors.New("empty document")
	}
	var (
		payload json.RawMessage
		version int
	)
	switch trimmed[0] {
	case '[':
		payload = trimmed
		version = 0
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, 0, err
		}
		if env.Version < 1 || env.Version > schemaVersion {
			return nil, env.Version, fmt.Errorf("%w: %d", errUnsupportedVersion, env.Version)
		}
		payload = env.Items
		version = env.Version
	default:
		return nil, 0, errors.New("document is neither an array nor an envelope")
	}
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, version, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, version, err
	}
	return items, version, nil
}
