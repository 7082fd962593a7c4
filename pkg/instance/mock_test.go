package instance_test

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobeyondidentity/attestd/internal/fixture"
	"github.com/gobeyondidentity/attestd/pkg/dice"
	"github.com/gobeyondidentity/attestd/pkg/instance"
	"github.com/gobeyondidentity/attestd/pkg/rot"
)

func setupMock(t *testing.T) (*fixture.Fixture, *instance.Mock) {
	t.Helper()
	fix, err := fixture.Generate()
	require.NoError(t, err)
	platform, err := fix.Mock()
	require.NoError(t, err)
	log := instance.NewInstanceLog(uuid.New(), bytes.Repeat([]byte{0xD4}, 32), "test-image-1.0")
	mock, err := instance.NewMock(platform, log)
	require.NoError(t, err)
	return fix, mock
}

func TestAttest_SinglePlatformTaggedAttestation(t *testing.T) {
	fix, mock := setupMock(t)

	nonce, err := rot.NewNonce()
	require.NoError(t, err)
	userData := []byte{66, 77, 88, 99}

	atts, err := mock.Attest(nonce, userData)
	require.NoError(t, err)
	require.Len(t, atts, 1, "instance RoT must emit exactly one chained attestation")
	assert.Equal(t, rot.RotPlatform, atts[0].Rot)

	// The statement's inner nonce must equal the digest a challenger
	// reconstructs from the instance log, nonce, and user data.
	st, err := dice.DecodeStatement(atts[0].Data)
	require.NoError(t, err)
	want := rot.ChainDigest(mock.InstanceLogBytes(), nonce, userData)
	assert.Equal(t, want, st.Nonce, "statement nonce must match independently chained digest")

	// And it must verify under the platform leaf.
	logs, err := mock.MeasurementLogs()
	require.NoError(t, err)
	assert.NoError(t, dice.VerifyAttestation(fix.Chain[0], st, logs[1].Data, want))
}

func TestAttest_NonceReachesPlatformOnlyChained(t *testing.T) {
	_, mock := setupMock(t)

	nonce, err := rot.NewNonce()
	require.NoError(t, err)

	atts, err := mock.Attest(nonce, nil)
	require.NoError(t, err)
	st, err := dice.DecodeStatement(atts[0].Data)
	require.NoError(t, err)
	assert.NotEqual(t, [dice.DigestSize]byte(nonce), st.Nonce,
		"raw challenger nonce must never reach the platform RoT")
}

func TestAttest_DistinctInputsDistinctDigests(t *testing.T) {
	_, mock := setupMock(t)

	nonce, err := rot.NewNonce()
	require.NoError(t, err)

	first, err := mock.Attest(nonce, []byte("alpha"))
	require.NoError(t, err)
	second, err := mock.Attest(nonce, []byte("bravo"))
	require.NoError(t, err)

	a, err := dice.DecodeStatement(first[0].Data)
	require.NoError(t, err)
	b, err := dice.DecodeStatement(second[0].Data)
	require.NoError(t, err)
	assert.NotEqual(t, a.Nonce, b.Nonce, "different user data must chain to different inner nonces")
}

func TestMeasurementLogs_OrderAndContent(t *testing.T) {
	_, mock := setupMock(t)

	logs, err := mock.MeasurementLogs()
	require.NoError(t, err)
	require.Len(t, logs, 2)

	// Instance log leads: its bytes take the first position in the
	// chained digest.
	assert.Equal(t, rot.RotInstance, logs[0].Rot)
	assert.Equal(t, rot.RotPlatform, logs[1].Rot)
	assert.Equal(t, rot.ByteSeq(mock.InstanceLogBytes()), logs[0].Data)

	instLog, err := dice.DecodeLog(logs[0].Data)
	require.NoError(t, err)
	require.Len(t, instLog.Measurements, 3)
	assert.Equal(t, "instance-uuid", instLog.Measurements[0].Name)
	assert.Equal(t, "rootfs", instLog.Measurements[1].Name)
	assert.Equal(t, "image-version", instLog.Measurements[2].Name)
}

func TestCertChains_PlatformOnly(t *testing.T) {
	fix, mock := setupMock(t)

	chains, err := mock.CertChains()
	require.NoError(t, err)
	require.Len(t, chains, 1, "the instance RoT never presents a chain of its own")
	assert.Equal(t, rot.RotPlatform, chains[0].Rot)
	require.Len(t, chains[0].Certs, len(fix.Chain))
	assert.Equal(t, rot.ByteSeq(fix.Chain[0].Raw), chains[0].Certs[0], "chain must be leaf-first")
}
