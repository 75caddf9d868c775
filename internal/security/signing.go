// Package security signs research records so downstream consumers can
// verify a report was produced by this service and not altered in transit.
package security

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/model"
)

const signingAlgorithm = "secp256k1-keccak256"

// Signature is the detached proof attached to a signed research record.
// Signer is the Ethereum-style address recovered from the signing key, so
// verification needs no separate public key distribution.
type Signature struct {
	Signature string `json:"signature"`
	Signer    string `json:"signer"`
	Algorithm string `json:"algorithm"`
	SignedAt  int64  `json:"signed_at"`
}

// Signer produces and verifies record signatures. A disabled Signer is a
// valid noop: Sign returns nil and Verify accepts nothing.
type Signer struct {
	enabled bool
	key     *ecdsa.PrivateKey
	address common.Address

	// now is swappable for tests
	now func() time.Time
}

// NewSigner creates a Signer. When enabled, a fresh key pair is generated
// for the lifetime of the process.
func NewSigner(enabled bool) (*Signer, error) {
	if !enabled {
		return &Signer{now: time.Now}, nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	return newWithKey(key), nil
}

// NewSignerFromHex creates an enabled Signer with a stable identity from a
// hex-encoded private key, so record signatures survive restarts.
func NewSignerFromHex(keyHex string) (*Signer, error) {
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parsing signing key: %w", err)
	}
	return newWithKey(key), nil
}

func newWithKey(key *ecdsa.PrivateKey) *Signer {
	s := &Signer{
		enabled: true,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		now:     time.Now,
	}
	logrus.WithField("signer", s.address.Hex()).Info("report signing enabled")
	return s
}

// WithClock replaces the time source, for tests.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Enabled reports whether records will be signed.
func (s *Signer) Enabled() bool {
	return s.enabled
}

// Address returns the signer identity, or empty when disabled.
func (s *Signer) Address() string {
	if !s.enabled {
		return ""
	}
	return s.address.Hex()
}

// Sign produces a detached signature over the record. Returns nil with no
// error when signing is disabled.
func (s *Signer) Sign(record model.ResearchRecord) (*Signature, error) {
	if !s.enabled {
		return nil, nil
	}

	digest, err := recordDigest(record)
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("signing record %s: %w", record.ID, err)
	}

	return &Signature{
		Signature: hexutil.Encode(sig),
		Signer:    s.address.Hex(),
		Algorithm: signingAlgorithm,
		SignedAt:  s.now().Unix(),
	}, nil
}

// Verify checks that the signature matches the record and was produced by
// the signer the signature claims. It does not require the local key, so
// any holder of a signed record can re-verify it.
func Verify(record model.ResearchRecord, sig *Signature) (bool, error) {
	if sig == nil {
		return false, fmt.Errorf("record %s carries no signature", record.ID)
	}
	if sig.Algorithm != signingAlgorithm {
		return false, fmt.Errorf("unsupported signature algorithm %q", sig.Algorithm)
	}

	digest, err := recordDigest(record)
	if err != nil {
		return false, err
	}

	raw, err := hexutil.Decode(sig.Signature)
	if err != nil {
		return false, fmt.Errorf("decoding signature: %w", err)
	}
	if len(raw) != crypto.SignatureLength {
		return false, fmt.Errorf("signature is %d bytes, want %d", len(raw), crypto.SignatureLength)
	}

	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return false, fmt.Errorf("recovering signer: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if !common.IsHexAddress(sig.Signer) || recovered != common.HexToAddress(sig.Signer) {
		return false, nil
	}
	return true, nil
}

// recordDigest hashes the canonical JSON encoding of the record. Struct
// field order is fixed at compile time, so the encoding is deterministic.
func recordDigest(record model.ResearchRecord) ([]byte, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encoding record %s: %w", record.ID, err)
	}
	return crypto.Keccak256(payload), nil
}
