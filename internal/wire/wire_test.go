package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{
			name: "xt_request",
			msg: &Message{
				SenderID: "sequencer-A",
				XTRequest: &XTRequest{
					Transactions: []*TransactionRequest{
						{
							ChainID:      []byte{0x12, 0x34},
							Transactions: [][]byte{{0x01, 0x02, 0x03, 0x04, 0x05}},
						},
						{
							ChainID:      []byte{0x13, 0x35},
							Transactions: [][]byte{{0x01, 0x02}, {0x03, 0x04}},
						},
					},
				},
			},
		},
		{
			name: "vote",
			msg: &Message{
				SenderID: "sequencer-B",
				Vote: &Vote{
					SenderChainID: []byte{0x13, 0x35},
					XtID:          7,
					Vote:          true,
				},
			},
		},
		{
			name: "vote abort",
			msg: &Message{
				SenderID: "sequencer-B",
				Vote: &Vote{
					SenderChainID: []byte{0x13, 0x35},
					XtID:          300,
					Vote:          false,
				},
			},
		},
		{
			name: "decided",
			msg: &Message{
				SenderID: "publisher",
				Decided:  &Decided{XtID: 1, Decision: true},
			},
		},
		{
			name: "block",
			msg: &Message{
				SenderID: "sequencer-C",
				Block: &Block{
					ChainID:       []byte{0x14, 0x36},
					BlockData:     []byte("Block from sequencer-C at 1716932785.01 with 1 TXs"),
					IncludedXtIDs: []uint32{1, 200, 70000},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)
		})
	}
}

func TestEncode_NoPayload(t *testing.T) {
	_, err := Encode(&Message{SenderID: "sequencer-A"})
	require.ErrorIs(t, err, ErrNoPayload)
}

func TestVarint_Boundaries(t *testing.T) {
	tests := []struct {
		value   uint64
		encoded []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xff, 0x7f}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{1<<32 - 1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}

	for _, tt := range tests {
		got := appendVarint(nil, tt.value)
		assert.Equal(t, tt.encoded, got, "encoding of %d", tt.value)

		val, n, err := readVarint(tt.encoded)
		require.NoError(t, err)
		assert.Equal(t, tt.value, val)
		assert.Equal(t, len(tt.encoded), n)
	}
}

// A 128-byte payload needs a two-byte varint length. Single-byte length
// emission is the classic defect that silently corrupts frames past 127
// bytes.
func TestEncode_LongPayloadLength(t *testing.T) {
	blockData := make([]byte, 128)
	for i := range blockData {
		blockData[i] = byte(i)
	}

	msg := &Message{
		SenderID: "sequencer-A",
		Block: &Block{
			ChainID:       []byte{0x12, 0x34},
			BlockData:     blockData,
			IncludedXtIDs: []uint32{1},
		},
	}

	data, err := Encode(msg)
	require.NoError(t, err)

	// The nested block_data field must carry the multi-byte length 0x80 0x01.
	assert.Contains(t, string(data), string([]byte{0x12, 0x80, 0x01, 0x00, 0x01, 0x02}))

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDecode_UnknownFieldsSkipped(t *testing.T) {
	data, err := Encode(&Message{
		SenderID: "sequencer-A",
		Decided:  &Decided{XtID: 9, Decision: true},
	})
	require.NoError(t, err)

	// Append a varint field 12 and a length-delimited field 13 that the
	// codec does not know about.
	data = appendVarintField(data, 12, 42)
	data = appendBytesField(data, 13, []byte("future extension"))

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "sequencer-A", got.SenderID)
	require.NotNil(t, got.Decided)
	assert.Equal(t, uint32(9), got.Decided.XtID)
	assert.True(t, got.Decided.Decision)
}

func TestDecode_MalformedVarint(t *testing.T) {
	// Tag promises a varint but every byte keeps the continuation bit set.
	data := []byte{0x10, 0x80, 0x80, 0x80}
	_, err := Decode(data)
	require.ErrorIs(t, err, ErrMalformedVarint)
}

func TestDecode_TruncatedMessage(t *testing.T) {
	// Length-delimited sender_id claims 10 bytes, only 3 present.
	data := []byte{0x0a, 0x0a, 'a', 'b', 'c'}
	_, err := Decode(data)
	require.ErrorIs(t, err, ErrTruncatedMessage)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecode_TruncatedNested(t *testing.T) {
	data, err := Encode(&Message{
		SenderID: "sequencer-A",
		Vote: &Vote{
			SenderChainID: []byte{0x12, 0x34},
			XtID:          3,
			Vote:          true,
		},
	})
	require.NoError(t, err)

	_, err = Decode(data[:len(data)-2])
	require.Error(t, err)
}
