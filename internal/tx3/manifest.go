package tx3

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Manifest is the JSON form of a compiled protocol, as emitted by the
// compiler command and stored by the compile cache.
type Manifest struct {
	Version      string                `json:"version"`
	Transactions []ManifestTransaction `json:"transactions"`
}

// ManifestTransaction is one transaction entry of a Manifest.
type ManifestTransaction struct {
	Name   string          `json:"name"`
	Params []ManifestParam `json:"params"`
	IR     string          `json:"ir"`
}

// ManifestParam is one parameter entry; order is significant.
type ManifestParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DecodeManifest parses manifest JSON into a Protocol named name.
func DecodeManifest(name string, data []byte) (*Protocol, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return manifest.Protocol(name)
}

// Protocol validates the manifest and converts it.
func (m Manifest) Protocol(name string) (*Protocol, error) {
	protocol := &Protocol{
		Name:         name,
		IRVersion:    strings.TrimSpace(m.Version),
		Transactions: make([]Transaction, 0, len(m.Transactions)),
	}
	seen := make(map[string]struct{}, len(m.Transactions))
	for i, entry := range m.Transactions {
		txName := strings.TrimSpace(entry.Name)
		if txName == "" {
			return nil, fmt.Errorf("transaction %d: name is required", i)
		}
		if _, ok := seen[txName]; ok {
			return nil, fmt.Errorf("transaction %s: duplicate name", txName)
		}
		seen[txName] = struct{}{}

		ir, err := hex.DecodeString(strings.TrimSpace(entry.IR))
		if err != nil {
			return nil, fmt.Errorf("transaction %s: decode ir: %w", txName, err)
		}
		params := make([]Param, 0, len(entry.Params))
		for _, param := range entry.Params {
			if strings.TrimSpace(param.Name) == "" {
				return nil, fmt.Errorf("transaction %s: parameter name is required", txName)
			}
			params = append(params, Param{Name: param.Name, Type: ParamType(param.Type)})
		}
		protocol.Transactions = append(protocol.Transactions, Transaction{Name: txName, Params: params, IR: ir})
	}
	return protocol, nil
}

// EncodeManifest renders a protocol back into manifest JSON.
func EncodeManifest(p *Protocol) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("protocol is required")
	}
	manifest := Manifest{
		Version:      p.IRVersion,
		Transactions: make([]ManifestTransaction, 0, len(p.Transactions)),
	}
	for _, tx := range p.Transactions {
		entry := ManifestTransaction{
			Name:   tx.Name,
			Params: make([]ManifestParam, 0, len(tx.Params)),
			IR:     tx.IRHex(),
		}
		for _, param := range tx.Params {
			entry.Params = append(entry.Params, ManifestParam{Name: param.Name, Type: string(param.Type)})
		}
		manifest.Transactions = append(manifest.Transactions, entry)
	}
	return json.Marshal(manifest)
}
