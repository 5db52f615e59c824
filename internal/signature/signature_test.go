package signature

import (
	"crypto/sha1" // nolint:gosec
	"encoding/hex"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignature_New(t *testing.T) {
	t.Run("default algorithm", func(t *testing.T) {
		s, err := New("secret", "")

		require.NoError(t, err)
		require.Equal(t, AlgorithmHMACSHA256, s.Algorithm())
	})

	t.Run("empty secret fail", func(t *testing.T) {
		_, err := New("", AlgorithmSHA1)

		require.Error(t, err)
	})

	t.Run("unknown algorithm fail", func(t *testing.T) {
		_, err := New("secret", "md5")

		require.Error(t, err)
	})
}

func TestSignature_Canonical(t *testing.T) {
	tests := []struct {
		name     string
		fields   Fields
		expected string
	}{
		{"integer amount", Fields{1, 2, 3, decimal.RequireFromString("150")}, "1:2:3:150"},
		{"fraction amount", Fields{12, 3, 7, decimal.RequireFromString("150.5")}, "12:3:7:150.5"},
		{"trailing zeros dropped", Fields{1, 1, 1, decimal.RequireFromString("150.50")}, "1:1:1:150.5"},
		{"whole float is integer", Fields{1, 7, 3, decimal.RequireFromString("50.0")}, "1:7:3:50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.fields.Canonical())
		})
	}
}

// Wire spelling of amount is not signed, only its value
// Digest over "50.0" is not accepted for amount 50
func TestSignature_AmountSpelling(t *testing.T) {
	s, err := New("secret", AlgorithmSHA1)
	require.NoError(t, err)
	fields := Fields{TransactionID: 1, UserID: 7, BillID: 3, Amount: decimal.RequireFromString("50.0")}

	sum := sha1.Sum([]byte("secret:1:7:3:50.0")) // nolint:gosec
	require.False(t, s.Verify(fields, hex.EncodeToString(sum[:])))

	sum = sha1.Sum([]byte("secret:1:7:3:50")) // nolint:gosec
	require.True(t, s.Verify(fields, hex.EncodeToString(sum[:])))
}

// Known digests produced outside of Go
func TestSignature_KnownVectors(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		alg    string
		fields Fields
		digest string
	}{
		{
			name:   "sha1",
			secret: "gfdmhghif38yrf9ew0jkf32",
			alg:    AlgorithmSHA1,
			fields: Fields{1, 1, 1, decimal.NewFromInt(150)},
			digest: "1eef68d37583e9e316568097f258249b6f6aee1d",
		},
		{
			name:   "sha1 fraction amount",
			secret: "secret",
			alg:    AlgorithmSHA1,
			fields: Fields{12, 3, 7, decimal.RequireFromString("150.5")},
			digest: "7c74f13b3bf75c91722bc38ef9160e3dee0d7db2",
		},
		{
			name:   "hmac-sha256",
			secret: "gfdmhghif38yrf9ew0jkf32",
			alg:    AlgorithmHMACSHA256,
			fields: Fields{1, 1, 1, decimal.NewFromInt(150)},
			digest: "2e5bc7c65f2650f0acce713339b0660703a9406f4f32cde0f06e58231b2fe6b1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.secret, tt.alg)
			require.NoError(t, err)

			assert.Equal(t, tt.digest, s.Sign(tt.fields))
			assert.True(t, s.Verify(tt.fields, tt.digest))
		})
	}
}

func TestSignature_Verify(t *testing.T) {
	fields := Fields{TransactionID: 1, UserID: 1, BillID: 1, Amount: decimal.NewFromInt(150)}

	for _, alg := range []string{AlgorithmSHA1, AlgorithmHMACSHA256} {
		t.Run(alg, func(t *testing.T) {
			s, err := New("secret", alg)
			require.NoError(t, err)
			digest := s.Sign(fields)

			t.Run("round trip", func(t *testing.T) {
				require.True(t, s.Verify(fields, digest))
			})

			t.Run("upper case digest", func(t *testing.T) {
				require.True(t, s.Verify(fields, strings.ToUpper(digest)))
			})

			t.Run("malformed digest", func(t *testing.T) {
				for _, d := range []string{"", "not-hex", digest[:len(digest)-2], digest + "00", "zz" + digest[2:]} {
					assert.False(t, s.Verify(fields, d), "digest %q must not verify", d)
				}
			})

			t.Run("other secret", func(t *testing.T) {
				other, err := New("other-secret", alg)
				require.NoError(t, err)

				require.False(t, other.Verify(fields, digest))
			})
		})
	}
}

// Changing any single field must invalidate the signature
func TestSignature_FieldPerturbation(t *testing.T) {
	s, err := New("secret", AlgorithmHMACSHA256)
	require.NoError(t, err)

	legacy, err := New("secret", AlgorithmSHA1)
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(1, 2))

	randomFields := func() Fields {
		return Fields{
			TransactionID: r.Int64N(1_000_000) + 1,
			UserID:        r.Int64N(1_000_000) + 1,
			BillID:        r.Int64N(1_000_000) + 1,
			Amount:        decimal.New(r.Int64N(10_000_000)+1, -2),
		}
	}

	perturb := func(f Fields) Fields {
		delta := r.Int64N(1000) + 1
		switch r.IntN(4) {
		case 0:
			f.TransactionID += delta
		case 1:
			f.UserID += delta
		case 2:
			f.BillID += delta
		default:
			f.Amount = f.Amount.Add(decimal.New(delta, -2))
		}
		return f
	}

	for range 1000 {
		original := randomFields()
		changed := perturb(original)

		for _, signer := range []*Signer{s, legacy} {
			digest := signer.Sign(original)

			require.True(t, signer.Verify(original, digest))
			require.False(t, signer.Verify(changed, digest), "perturbed fields %+v must not verify with digest of %+v", changed, original)
		}
	}
}
