package steem

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/dmitrorezn/steem-multisig-relay/internal/domain"
)

const (
	wifVersion = 0x80
	// compact signatures carry 27 + 4 (compressed key) + recovery code
	compactHeader = 27 + 4

	maxSignAttempts = 1000
)

// Keyring signs transactions with one key per authority.
type Keyring struct {
	chainID string
	keys    map[domain.Authority]*secp256k1.PrivateKey
}

// NewKeyring decodes the given WIF keys. Empty entries are skipped; signing
// with an authority that has no key fails.
func NewKeyring(chainID string, wifs map[domain.Authority]string) (*Keyring, error) {
	if _, err := hex.DecodeString(chainID); err != nil {
		return nil, errors.Wrap(err, "chain id")
	}
	k := &Keyring{
		chainID: chainID,
		keys:    make(map[domain.Authority]*secp256k1.PrivateKey, len(wifs)),
	}
	for authority, wif := range wifs {
		if wif == "" {
			continue
		}
		key, err := DecodeWIF(wif)
		if err != nil {
			return nil, errors.Wrapf(err, "%s key", authority)
		}
		k.keys[authority] = key
	}

	return k, nil
}

func (k *Keyring) Has(authority domain.Authority) bool {
	_, ok := k.keys[authority]

	return ok
}

func (k *Keyring) Sign(tx *domain.Transaction, authority domain.Authority) error {
	key, ok := k.keys[authority]
	if !ok {
		return errors.Errorf("no %s key configured", authority)
	}
	digest, err := Digest(k.chainID, tx)
	if err != nil {
		return err
	}
	sig, err := signCanonical(key, digest)
	if err != nil {
		return err
	}
	tx.Signatures = append(tx.Signatures, hex.EncodeToString(sig))

	return nil
}

func DecodeWIF(wif string) (*secp256k1.PrivateKey, error) {
	raw, err := base58.Decode(wif)
	if err != nil {
		return nil, errors.Wrap(err, "wif")
	}
	if len(raw) != 1+32+4 || raw[0] != wifVersion {
		return nil, errors.New("wif: malformed key")
	}
	if !bytes.Equal(checksum(raw[:33]), raw[33:]) {
		return nil, errors.New("wif: checksum mismatch")
	}

	return secp256k1.PrivKeyFromBytes(raw[1:33]), nil
}

func EncodeWIF(key *secp256k1.PrivateKey) string {
	raw := append([]byte{wifVersion}, key.Serialize()...)

	return base58.Encode(append(raw, checksum(raw)...))
}

func checksum(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])

	return second[:4]
}

// signCanonical produces a 65 byte recoverable signature the node accepts.
// Nodes reject r or s with a high bit set or a needless leading zero, so
// nonces are drawn until both halves qualify.
func signCanonical(key *secp256k1.PrivateKey, hash []byte) ([]byte, error) {
	privBytes := key.Serialize()
	var e secp256k1.ModNScalar
	e.SetByteSlice(hash)

	for attempt := uint32(0); attempt < maxSignAttempts; attempt++ {
		k := secp256k1.NonceRFC6979(privBytes, hash, nil, nil, attempt)

		var point secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(k, &point)
		point.ToAffine()

		var xBytes [32]byte
		point.X.PutBytes(&xBytes)
		var r secp256k1.ModNScalar
		overflow := r.SetBytes(&xBytes)
		if r.IsZero() {
			continue
		}
		code := byte(0)
		if point.Y.IsOdd() {
			code |= 1
		}
		if overflow == 1 {
			code |= 2
		}

		kinv := new(secp256k1.ModNScalar).Set(k).InverseNonConst()
		s := new(secp256k1.ModNScalar).Mul2(&key.Key, &r).Add(&e).Mul(kinv)
		k.Zero()
		if s.IsZero() {
			continue
		}
		if s.IsOverHalfOrder() {
			s.Negate()
			code ^= 1
		}

		sig := make([]byte, 65)
		sig[0] = compactHeader + code
		var rb, sb [32]byte
		r.PutBytes(&rb)
		s.PutBytes(&sb)
		copy(sig[1:33], rb[:])
		copy(sig[33:], sb[:])
		if isCanonical(sig) {
			return sig, nil
		}
	}

	return nil, errors.New("no canonical signature found")
}

func isCanonical(c []byte) bool {
	return c[1]&0x80 == 0 &&
		!(c[1] == 0 && c[2]&0x80 == 0) &&
		c[33]&0x80 == 0 &&
		!(c[33] == 0 && c[34]&0x80 == 0)
}
