package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ticketRow struct {
	ID        string    `cbor:"id"`
	Subject   string    `cbor:"subject"`
	Tags      []string  `cbor:"tags"`
	CreatedAt time.Time `cbor:"created_at"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2, "c": []any{"x"}}
	b := map[string]any{"c": []any{"x"}, "a": 2, "b": 1}

	encA, err := Marshal(a)
	require.NoError(t, err)
	encB, err := Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, encA, encB)
}

func TestStructValue(t *testing.T) {
	in := ticketRow{
		ID:        "tkt_1",
		Subject:   "Printer on fire",
		Tags:      []string{"hardware", "urgent"},
		CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC),
	}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out ticketRow
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Tags, out.Tags)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
}

func TestDecodeAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"status": "open"})
	require.NoError(t, err)

	var out any
	require.NoError(t, Unmarshal(data, &out))
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "open", m["status"])
}

func TestUnmarshalGarbage(t *testing.T) {
	var out ticketRow
	assert.Error(t, Unmarshal([]byte{0xff, 0x00}, &out))
}
