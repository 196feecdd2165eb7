package types

import (
	"encoding/hex"
	"encoding/json"
)

// ScriptType identifies the type of locking script.
type ScriptType uint8

const (
	ScriptTypeP2PKH ScriptType = 0x01 // Pay to public key hash
	ScriptTypeNote  ScriptType = 0x50 // Pay to public key hash carrying an N20 payload
)

// String returns a human-readable name for the script type.
func (st ScriptType) String() string {
	switch st {
	case ScriptTypeP2PKH:
		return "P2PKH"
	case ScriptTypeNote:
		return "Note"
	default:
		return "Unknown"
	}
}

// Script defines the locking condition for an output. For P2PKH scripts
// Data is the 20-byte address. For Note scripts Data is the address
// followed by the payload bytes.
type Script struct {
	Type ScriptType `json:"type"`
	Data []byte     `json:"data"`
}

// P2PKHScript returns the pay-to-address script for addr.
func P2PKHScript(addr Address) Script {
	return Script{Type: ScriptTypeP2PKH, Data: addr.Bytes()}
}

// NoteScript returns a script paying addr and carrying payload.
func NoteScript(addr Address, payload []byte) Script {
	data := make([]byte, 0, AddressSize+len(payload))
	data = append(data, addr[:]...)
	data = append(data, payload...)
	return Script{Type: ScriptTypeNote, Data: data}
}

// Address returns the address a P2PKH or Note script pays to.
func (s Script) Address() (Address, bool) {
	if len(s.Data) < AddressSize {
		return Address{}, false
	}
	if s.Type != ScriptTypeP2PKH && s.Type != ScriptTypeNote {
		return Address{}, false
	}
	var a Address
	copy(a[:], s.Data[:AddressSize])
	return a, true
}

// Payload returns the bytes carried by a Note script.
func (s Script) Payload() []byte {
	if s.Type != ScriptTypeNote || len(s.Data) < AddressSize {
		return nil
	}
	return s.Data[AddressSize:]
}

// Bytes returns the type byte followed by the script data.
func (s Script) Bytes() []byte {
	b := make([]byte, 0, 1+len(s.Data))
	b = append(b, byte(s.Type))
	return append(b, s.Data...)
}

type scriptJSON struct {
	Type ScriptType `json:"type"`
	Data string     `json:"data"`
}

// MarshalJSON encodes the script with hex-encoded data.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(scriptJSON{
		Type: s.Type,
		Data: hex.EncodeToString(s.Data),
	})
}

// UnmarshalJSON decodes a script with hex-encoded data.
func (s *Script) UnmarshalJSON(data []byte) error {
	var j scriptJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	s.Type = j.Type
	s.Data = nil
	if j.Data != "" {
		b, err := hex.DecodeString(j.Data)
		if err != nil {
			return err
		}
		s.Data = b
	}
	return nil
}
