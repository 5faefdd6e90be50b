package dtls

import (
	"crypto"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrfPHashIsDeterministicAndRightLength(t *testing.T) {
	secret := []byte("a secret")
	seed := []byte("a seed")

	out, err := prfPHash(secret, seed, 37, crypto.SHA256)
	assert.NoError(t, err)
	assert.Len(t, out, 37)

	again, err := prfPHash(secret, seed, 37, crypto.SHA256)
	assert.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestPrfPHashIsPrefixStableAcrossLengths(t *testing.T) {
	secret := []byte("a secret")
	seed := []byte("a seed")

	short, err := prfPHash(secret, seed, 16, crypto.SHA256)
	assert.NoError(t, err)
	long, err := prfPHash(secret, seed, 64, crypto.SHA256)
	assert.NoError(t, err)

	assert.Equal(t, short, long[:16], "P_hash output must be a stable prefix regardless of requested length")
}

func TestPrfMasterSecretIs48Bytes(t *testing.T) {
	preMaster := make([]byte, 32)
	clientRandom := make([]byte, 32)
	serverRandom := make([]byte, 32)

	ms, err := prfMasterSecret(preMaster, clientRandom, serverRandom, crypto.SHA256)
	assert.NoError(t, err)
	assert.Len(t, ms, masterSecretLength)
}

func TestPrfMasterSecretDependsOnRandoms(t *testing.T) {
	preMaster := make([]byte, 32)
	r1 := make([]byte, 32)
	r2 := make([]byte, 32)
	r2[0] = 0xFF

	ms1, err := prfMasterSecret(preMaster, r1, r1, crypto.SHA256)
	assert.NoError(t, err)
	ms2, err := prfMasterSecret(preMaster, r1, r2, crypto.SHA256)
	assert.NoError(t, err)

	assert.NotEqual(t, ms1, ms2)
}

func TestPrfVerifyDataIs12BytesAndLabelSpecific(t *testing.T) {
	masterSecret := make([]byte, masterSecretLength)
	hash := make([]byte, 32)

	clientData, err := prfVerifyDataClient(masterSecret, hash, crypto.SHA256)
	assert.NoError(t, err)
	assert.Len(t, clientData, 12)

	serverData, err := prfVerifyDataServer(masterSecret, hash, crypto.SHA256)
	assert.NoError(t, err)
	assert.Len(t, serverData, 12)

	assert.NotEqual(t, clientData, serverData, "client and server Finished verify_data must differ")
}

func TestExportKeyingMaterialContextChangesOutput(t *testing.T) {
	masterSecret := make([]byte, masterSecretLength)
	clientRandom := make([]byte, 32)
	serverRandom := make([]byte, 32)

	withoutCtx, err := exportKeyingMaterial(masterSecret, clientRandom, serverRandom, "EXPORTER-test", nil, 32, crypto.SHA256)
	assert.NoError(t, err)

	withCtx, err := exportKeyingMaterial(masterSecret, clientRandom, serverRandom, "EXPORTER-test", []byte("ctx"), 32, crypto.SHA256)
	assert.NoError(t, err)

	assert.Len(t, withoutCtx, 32)
	assert.Len(t, withCtx, 32)
	assert.NotEqual(t, withoutCtx, withCtx)
}
