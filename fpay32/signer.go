package fpay32

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MessageSigner is passed to the Builder and is used to sign the invoice the
// payee key is set on.
type MessageSigner struct {
	// SignCompact signs the hash of the passed msg with the node's
	// privkey. The returned signature should be 65 bytes, where the last
	// 64 are the compact signature, and the first one is a header byte.
	// This is the format returned by ecdsa.SignCompact.
	SignCompact func(msg []byte) ([]byte, error)
}

// NewPrivKeySigner returns a MessageSigner signing the single SHA-256 hash of
// the message with key.
func NewPrivKeySigner(key *btcec.PrivateKey) MessageSigner {
	return MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			hash := chainhash.HashB(msg)
			return ecdsa.SignCompact(key, hash, true), nil
		},
	}
}

// NodeSigner bundles a node's public key with the signer for its private
// key. Services that sign their invoices carry one.
type NodeSigner struct {
	PubKey *btcec.PublicKey
	Signer MessageSigner
}

// NewNodeSigner builds a NodeSigner for a private key held in memory.
func NewNodeSigner(key *btcec.PrivateKey) *NodeSigner {
	return &NodeSigner{
		PubKey: key.PubKey(),
		Signer: NewPrivKeySigner(key),
	}
}

// Apply sets the payee key and signer on b.
func (n *NodeSigner) Apply(b Builder) Builder {
	return b.PayeePubKey(n.PubKey).Signer(n.Signer)
}

var (
	errNoSigner = errors.New("payee key set but no signer configured")

	errNoPayeeKey = errors.New("payee key is nil")
)
