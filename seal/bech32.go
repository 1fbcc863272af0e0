package seal

import (
	"github.com/zoedberg/lnpbp/bech"
	"github.com/zoedberg/lnpbp/strict"
)

const (
	// DefinitionHRP is the bech32 human readable part for revealed seal
	// definitions.
	DefinitionHRP = "utxob"

	// ConfidentialHRP is the bech32 human readable part for confidential
	// seal identifiers.
	ConfidentialHRP = "txob"
)

// String returns the bech32 form of the seal definition. Sharing this
// string reveals the outpoint and the blinding factor; use the confidential
// form for unlinkable exchange.
func (d *Definition) String() string {
	encoded, err := strict.Encode(d)
	if err != nil {
		return "<invalid seal>"
	}

	s, err := bech.Encode(DefinitionHRP, encoded)
	if err != nil {
		return "<invalid seal>"
	}

	return s
}

// DecodeDefinition parses the bech32 form of a seal definition.
func DecodeDefinition(s string) (*Definition, error) {
	data, err := bech.Decode(DefinitionHRP, s)
	if err != nil {
		return nil, err
	}

	var def Definition
	if err := strict.Decode(data, &def); err != nil {
		return nil, err
	}

	return &def, nil
}

// Bech32 returns the bech32 form of the confidential seal.
func (c Confidential) Bech32() (string, error) {
	return bech.Encode(ConfidentialHRP, c[:])
}

// DecodeConfidential parses the bech32 form of a confidential seal.
func DecodeConfidential(s string) (Confidential, error) {
	data, err := bech.Decode(ConfidentialHRP, s)
	if err != nil {
		return Confidential{}, err
	}

	var conf Confidential
	if err := strict.Decode(data, &conf); err != nil {
		return Confidential{}, err
	}

	return conf, nil
}
