package commsutil

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

const codecLogPrefix = "commsutil:codec"

// Codec names accepted by CodecFor.
const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

// Codec serializes COMMS payloads.
type Codec struct {
	Name        string
	ContentType string
	marshal     func(v any) ([]byte, error)
	unmarshal   func(data []byte, v any) error
}

var cborDecMode = mustCBORDecMode()

func mustCBORDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("%s - cbor decode mode: %v", codecLogPrefix, err))
	}
	return dm
}

// JSON is the default payload codec.
var JSON = Codec{
	Name:        CodecJSON,
	ContentType: "application/json",
	marshal:     json.Marshal,
	unmarshal:   json.Unmarshal,
}

// CBOR is a compact binary codec. Struct fields follow their json tags.
var CBOR = Codec{
	Name:        CodecCBOR,
	ContentType: "application/cbor",
	marshal:     cbor.Marshal,
	unmarshal:   cborDecMode.Unmarshal,
}

// CodecFor returns the codec registered under name; empty selects JSON.
func CodecFor(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecJSON:
		return JSON, nil
	case CodecCBOR:
		return CBOR, nil
	}
	return Codec{}, fmt.Errorf("%s - unknown codec %q", codecLogPrefix, name)
}

// Encode serializes v.
func (c Codec) Encode(v any) ([]byte, error) {
	return c.marshal(v)
}

// Decode deserializes data into v.
func (c Codec) Decode(data []byte, v any) error {
	return c.unmarshal(data, v)
}
