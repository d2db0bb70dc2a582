// Package format implements the serialization schemes a remote caller may declare for the facts
// it sends and the catalog it receives. The set is closed: an unknown scheme name is rejected
// before any payload is touched.
package format

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/atlanticdynamic/catalogd/internal/errz"
	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Scheme is one of the supported serialization schemes.
type Scheme int

const (
	// SchemeUnknown is the zero value and is never valid.
	SchemeUnknown Scheme = iota
	SchemeYAML
	SchemeCBOR
	SchemeJSON
)

var schemeNames = map[Scheme]string{
	SchemeYAML: "yaml",
	SchemeCBOR: "cbor",
	SchemeJSON: "json",
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("format: CBOR encoder initialization failed: " + err.Error())
	}

	// Facts and resource params are decoded into any-typed targets; keep string keys so the
	// result matches what the yaml and json schemes produce.
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("format: CBOR decoder initialization failed: " + err.Error())
	}
}

// Parse resolves a scheme name. Matching is case-insensitive and ignores surrounding spaces.
func Parse(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "yaml", "yml":
		return SchemeYAML, nil
	case "cbor":
		return SchemeCBOR, nil
	case "json":
		return SchemeJSON, nil
	default:
		return SchemeUnknown, fmt.Errorf("%w %s", errz.ErrUnsupportedFormat, name)
	}
}

// Names lists the canonical names of the supported schemes.
func Names() []string {
	return []string{"yaml", "cbor", "json"}
}

func (s Scheme) String() string {
	if name, ok := schemeNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether s is one of the supported schemes.
func (s Scheme) Valid() bool {
	_, ok := schemeNames[s]
	return ok
}

// ContentType returns the media type used by the HTTP transport.
func (s Scheme) ContentType() string {
	switch s {
	case SchemeYAML:
		return "application/yaml"
	case SchemeCBOR:
		return "application/cbor"
	case SchemeJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Encode serializes v under the scheme.
func (s Scheme) Encode(v any) ([]byte, error) {
	switch s {
	case SchemeYAML:
		return yaml.Marshal(v)
	case SchemeCBOR:
		return cborEnc.Marshal(v)
	case SchemeJSON:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("%w %s", errz.ErrUnsupportedFormat, s)
	}
}

// Decode deserializes data into v under the scheme.
func (s Scheme) Decode(data []byte, v any) error {
	switch s {
	case SchemeYAML:
		return yaml.Unmarshal(data, v)
	case SchemeCBOR:
		return cborDec.Unmarshal(data, v)
	case SchemeJSON:
		return json.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w %s", errz.ErrUnsupportedFormat, s)
	}
}
