package bootstrap

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// namePrefix marks a window name as carrying a frameport handshake. The tag
// rides along in clear text so debugging tools can tell instances apart
// without decoding the payload.
const namePrefix = "__frameport__"

// ErrNotBootstrapName is returned when a window name does not carry a
// handshake payload.
var ErrNotBootstrapName = errors.New("bootstrap: window name carries no handshake payload")

// EncodeName serializes a payload into an opaque window-name string:
// __frameport__<tag>__<base64url(msgpack(payload))>.
func EncodeName(p Payload) (string, error) {
	packed, err := msgpack.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("bootstrap: encode payload: %w", err)
	}
	return namePrefix + p.Tag + "__" + base64.RawURLEncoding.EncodeToString(packed), nil
}

// DecodeName parses a window-name string produced by EncodeName.
func DecodeName(name string) (Payload, error) {
	var p Payload

	rest, ok := strings.CutPrefix(name, namePrefix)
	if !ok {
		return p, ErrNotBootstrapName
	}
	_, encoded, ok := strings.Cut(rest, "__")
	if !ok {
		return p, ErrNotBootstrapName
	}

	packed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return p, fmt.Errorf("bootstrap: decode payload: %w", err)
	}
	if err := msgpack.Unmarshal(packed, &p); err != nil {
		return p, fmt.Errorf("bootstrap: decode payload: %w", err)
	}
	return p, nil
}
