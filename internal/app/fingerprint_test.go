package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_DeterministicAndFixedLength(t *testing.T) {
	f := NewFingerprinter("")

	a := f.Fingerprint(testClient)
	b := f.Fingerprint(testClient)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, testClient.Address)
}

func TestFingerprint_DistinguishesInputs(t *testing.T) {
	f := NewFingerprinter("")

	base := f.Fingerprint(Client{Address: "1.2.3.4", UserAgent: "curl"})
	assert.NotEqual(t, base, f.Fingerprint(Client{Address: "1.2.3.5", UserAgent: "curl"}))
	assert.NotEqual(t, base, f.Fingerprint(Client{Address: "1.2.3.4", UserAgent: "wget"}))

	// Concatenation boundaries must not collide.
	assert.NotEqual(t,
		f.Fingerprint(Client{Address: "1.2.3.4", UserAgent: "5x"}),
		f.Fingerprint(Client{Address: "1.2.3.45", UserAgent: "x"}),
	)
}

func TestFingerprint_EmptyInputsStillValid(t *testing.T) {
	token := NewFingerprinter("").Fingerprint(Client{})
	assert.Len(t, token, 64)
}

func TestFingerprint_SecretChangesToken(t *testing.T) {
	plain := NewFingerprinter("").Fingerprint(testClient)
	keyedA := NewFingerprinter("a").Fingerprint(testClient)
	keyedB := NewFingerprinter("b").Fingerprint(testClient)

	assert.NotEqual(t, plain, keyedA)
	assert.NotEqual(t, keyedA, keyedB)
	assert.Equal(t, keyedA, NewFingerprinter("a").Fingerprint(testClient))
}
