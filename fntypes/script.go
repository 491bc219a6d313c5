package fntypes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ScriptHashType tells how a script's code hash is matched against on-chain
// code cells.
type ScriptHashType uint8

const (
	// ScriptHashData matches the data hash of the code cell.
	ScriptHashData ScriptHashType = 0

	// ScriptHashTypeType matches the type script hash of the code cell.
	ScriptHashTypeType ScriptHashType = 1

	// ScriptHashData1 matches the data hash, executed by VM version 1.
	ScriptHashData1 ScriptHashType = 2

	// ScriptHashData2 matches the data hash, executed by VM version 2.
	ScriptHashData2 ScriptHashType = 4
)

// ErrUnknownScriptHashType is returned for hash type values that are not
// defined.
var ErrUnknownScriptHashType = errors.New("unknown script hash type")

// IsValid reports whether t is a defined hash type.
func (t ScriptHashType) IsValid() bool {
	switch t {
	case ScriptHashData, ScriptHashTypeType, ScriptHashData1,
		ScriptHashData2:

		return true
	}

	return false
}

// String returns the name used in JSON.
func (t ScriptHashType) String() string {
	switch t {
	case ScriptHashData:
		return "data"
	case ScriptHashTypeType:
		return "type"
	case ScriptHashData1:
		return "data1"
	case ScriptHashData2:
		return "data2"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ScriptHashType) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownScriptHashType,
			uint8(t))
	}

	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ScriptHashType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "data":
		*t = ScriptHashData
	case "type":
		*t = ScriptHashTypeType
	case "data1":
		*t = ScriptHashData1
	case "data2":
		*t = ScriptHashData2
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScriptHashType, text)
	}

	return nil
}

// Script identifies an on-chain script, used to name the user defined token
// an invoice is denominated in.
type Script struct {
	CodeHash Hash
	HashType ScriptHashType
	Args     []byte
}

// Equal reports whether two scripts are identical. Nil and empty args are
// considered equal.
func (s Script) Equal(o Script) bool {
	return s.CodeHash == o.CodeHash && s.HashType == o.HashType &&
		bytes.Equal(s.Args, o.Args)
}

// Copy returns a deep copy of the script.
func (s Script) Copy() Script {
	c := s
	if s.Args != nil {
		c.Args = append([]byte(nil), s.Args...)
	}

	return c
}

type jsonScript struct {
	CodeHash Hash           `json:"code_hash"`
	HashType ScriptHashType `json:"hash_type"`
	Args     string         `json:"args"`
}

// MarshalJSON implements json.Marshaler.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonScript{
		CodeHash: s.CodeHash,
		HashType: s.HashType,
		Args:     EncodeHex(s.Args),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Script) UnmarshalJSON(data []byte) error {
	var js jsonScript
	if err := json.Unmarshal(data, &js); err != nil {
		return err
	}

	args, err := DecodeHex(js.Args)
	if err != nil {
		return fmt.Errorf("script args: %w", err)
	}

	*s = Script{
		CodeHash: js.CodeHash,
		HashType: js.HashType,
		Args:     args,
	}

	return nil
}
