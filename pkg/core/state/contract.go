package state

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/pkg/io"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
)

// Contract holds information about a deployed contract instance.
type Contract struct {
	// Address is the contract address derived from deployer and its nonce.
	Address common.Address `json:"address"`
	// Factory is the name of the factory contract was created from.
	Factory string `json:"factory"`
	// Deployer is the account that sent the deployment transaction.
	Deployer common.Address `json:"deployer"`
	// TxHash is the hash of the deployment transaction.
	TxHash common.Hash `json:"txhash"`
	// BlockIndex is the height of the block containing deployment.
	BlockIndex uint32 `json:"blockindex"`
	// Manifest describes contract ABI.
	Manifest manifest.Manifest `json:"manifest"`
}

// EncodeBinary implements the io.Serializable interface.
func (c *Contract) EncodeBinary(w *io.BinWriter) {
	w.WriteBytes(c.Address[:])
	w.WriteString(c.Factory)
	w.WriteBytes(c.Deployer[:])
	w.WriteBytes(c.TxHash[:])
	w.WriteU32LE(c.BlockIndex)
	m, err := json.Marshal(&c.Manifest)
	if err != nil {
		w.Err = fmt.Errorf("manifest: %w", err)
		return
	}
	w.WriteVarBytes(m)
}

// DecodeBinary implements the io.Serializable interface.
func (c *Contract) DecodeBinary(r *io.BinReader) {
	r.ReadBytes(c.Address[:])
	c.Factory = r.ReadString()
	r.ReadBytes(c.Deployer[:])
	r.ReadBytes(c.TxHash[:])
	c.BlockIndex = r.ReadU32LE()
	m := r.ReadVarBytes(manifest.MaxManifestSize)
	if r.Err != nil {
		return
	}
	if err := json.Unmarshal(m, &c.Manifest); err != nil {
		r.Err = fmt.Errorf("manifest: %w", err)
	}
}
