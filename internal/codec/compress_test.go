package codec

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackSmallPayloadStaysRaw(t *testing.T) {
	framed := Pack([]byte("ticket t1"))
	assert.False(t, Compressed(framed))
	assert.Len(t, framed, len("ticket t1")+1)

	out, err := Unpack(framed)
	require.NoError(t, err)
	assert.Equal(t, []byte("ticket t1"), out)
}

func TestPackCompressesLargeRepetitivePayload(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"status":"open","subject":"printer on fire"}`), 200)

	framed := Pack(payload)
	assert.True(t, Compressed(framed))
	assert.Less(t, len(framed), len(payload)/4)

	out, err := Unpack(framed)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestPackKeepsIncompressiblePayloadRaw(t *testing.T) {
	payload := make([]byte, 4*CompressThreshold)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	framed := Pack(payload)
	assert.False(t, Compressed(framed))

	out, err := Unpack(framed)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestUnpackRejectsUnknownFrames(t *testing.T) {
	_, err := Unpack(nil)
	require.ErrorIs(t, err, ErrBadFrame)

	_, err = Unpack([]byte{9, 1, 2})
	require.ErrorIs(t, err, ErrBadFrame)

	_, err = Unpack([]byte{tagZstd, 1, 2, 3})
	require.Error(t, err)
}
