// Package signature signs and verifies payment provider notifications.
//
// The signed message is the notification fields joined with colons in fixed order:
//
//	transaction_id:user_id:bill_id:amount
//
// Integers are rendered in base 10, amount in its shortest decimal form ("150", "150.5").
// The amount value is signed, not its spelling on the wire: "50.0", "50.00" and "50" all sign as "50".
// Providers must render amounts the same way, in both algorithms.
package signature

import (
	"crypto/hmac"
	"crypto/sha1" // nolint:gosec
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// HMAC-SHA256 keyed with the secret over the message
	AlgorithmHMACSHA256 = "hmac-sha256"

	// SHA1 over "secret:" followed by the message
	// Kept for providers still signing the legacy way
	AlgorithmSHA1 = "sha1"
)

// Fields covered by signature
type Fields struct {
	TransactionID int64
	UserID        int64
	BillID        int64
	Amount        decimal.Decimal
}

// Canonical message to sign
func (f Fields) Canonical() string {
	return strings.Join([]string{
		strconv.FormatInt(f.TransactionID, 10),
		strconv.FormatInt(f.UserID, 10),
		strconv.FormatInt(f.BillID, 10),
		f.Amount.String(),
	}, ":")
}

type Signer struct {
	secret []byte
	alg    string
}

// New signer for secret and algorithm. Empty algorithm means AlgorithmHMACSHA256
func New(secret string, alg string) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("signature secret must not be empty")
	}

	switch alg {
	case "":
		alg = AlgorithmHMACSHA256
	case AlgorithmHMACSHA256, AlgorithmSHA1:
	default:
		return nil, fmt.Errorf("unknown signature algorithm %q", alg)
	}

	return &Signer{secret: []byte(secret), alg: alg}, nil
}

func (s *Signer) Algorithm() string {
	return s.alg
}

// Sign returns lowercase hex digest of the fields
func (s *Signer) Sign(f Fields) string {
	return hex.EncodeToString(s.sum(f))
}

// Verify reports whether digest is the signature of the fields
// Malformed digest is never valid
func (s *Signer) Verify(f Fields, digest string) bool {
	if digest == "" {
		return false
	}

	got, err := hex.DecodeString(strings.ToLower(digest))
	if err != nil {
		return false
	}

	return hmac.Equal(got, s.sum(f))
}

func (s *Signer) sum(f Fields) []byte {
	var h hash.Hash

	switch s.alg {
	case AlgorithmSHA1:
		h = sha1.New() // nolint:gosec
		h.Write(s.secret)
		h.Write([]byte{':'})
	default:
		h = hmac.New(sha256.New, s.secret)
	}

	h.Write([]byte(f.Canonical()))
	return h.Sum(nil)
}
