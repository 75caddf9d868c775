package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/token-research-api/internal/model"
)

// Well-known dev key, never used outside tests.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testRecord() model.ResearchRecord {
	return model.ResearchRecord{
		ID: "research_1772366400000_UNI",
		Token: model.TokenIdentity{
			Ticker: "UNI",
			Name:   "Uniswap",
		},
		PriceData:  model.PriceData{CurrentPrice: 6.0},
		Tokenomics: model.Tokenomics{MarketCap: 3.6e9},
		Analysis: model.RiskAssessment{
			Score: 4,
			Class: model.RiskMedium,
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	signer, err := NewSignerFromHex(testKeyHex)
	require.NoError(t, err)

	sig, err := signer.Sign(testRecord())
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, signingAlgorithm, sig.Algorithm)
	assert.Equal(t, signer.Address(), sig.Signer)

	ok, err := Verify(testRecord(), sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsTamperedRecord(t *testing.T) {
	signer, err := NewSignerFromHex(testKeyHex)
	require.NoError(t, err)

	sig, err := signer.Sign(testRecord())
	require.NoError(t, err)

	tampered := testRecord()
	tampered.Analysis.Score = 1
	tampered.Analysis.Class = model.RiskLow

	ok, err := Verify(tampered, sig)
	require.NoError(t, err)
	assert.False(t, ok, "altered score must break the signature")
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	signer, err := NewSignerFromHex(testKeyHex)
	require.NoError(t, err)

	sig, err := signer.Sign(testRecord())
	require.NoError(t, err)
	sig.Signer = "0x000000000000000000000000000000000000dEaD"

	ok, err := Verify(testRecord(), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyRejectsMalformedSignatures(t *testing.T) {
	_, err := Verify(testRecord(), nil)
	assert.Error(t, err)

	_, err = Verify(testRecord(), &Signature{Algorithm: "rsa-sha256"})
	assert.Error(t, err)

	_, err = Verify(testRecord(), &Signature{
		Algorithm: signingAlgorithm,
		Signature: "0xdead",
	})
	assert.Error(t, err)
}

func TestDisabledSignerIsNoop(t *testing.T) {
	signer, err := NewSigner(false)
	require.NoError(t, err)

	assert.False(t, signer.Enabled())
	assert.Empty(t, signer.Address())

	sig, err := signer.Sign(testRecord())
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestGeneratedKeysDiffer(t *testing.T) {
	a, err := NewSigner(true)
	require.NoError(t, err)
	b, err := NewSigner(true)
	require.NoError(t, err)

	assert.NotEqual(t, a.Address(), b.Address())
}

func TestStableIdentityFromHexKey(t *testing.T) {
	a, err := NewSignerFromHex(testKeyHex)
	require.NoError(t, err)
	b, err := NewSignerFromHex(testKeyHex)
	require.NoError(t, err)

	assert.Equal(t, a.Address(), b.Address())
}
