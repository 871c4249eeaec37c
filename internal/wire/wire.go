// Package wire implements the coordinator's binary message format: a
// protobuf-compatible envelope encoded by hand, framed with a 4-byte
// big-endian length prefix for stream transport.
package wire

// Message field numbers within the envelope. The payload fields are
// mutually exclusive: exactly one is present per message.
const (
	fieldSenderID  = 1
	fieldXTRequest = 2
	fieldVote      = 3
	fieldDecided   = 4
	fieldBlock     = 5
)

// Wire types used by the format. Only varint and length-delimited
// values appear in coordinator traffic.
const (
	wireVarint          = 0
	wireLengthDelimited = 2
)

// Message is the envelope exchanged with the coordinator.
type Message struct {
	SenderID  string
	XTRequest *XTRequest
	Vote      *Vote
	Decided   *Decided
	Block     *Block
}

// XTRequest proposes a cross-chain transaction spanning one or more chains.
type XTRequest struct {
	Transactions []*TransactionRequest
}

// TransactionRequest carries the raw transaction payloads destined for one chain.
type TransactionRequest struct {
	ChainID      []byte
	Transactions [][]byte
}

// Vote is a participant's commit/abort vote for one proposal.
type Vote struct {
	SenderChainID []byte
	XtID          uint32
	Vote          bool
}

// Decided is the coordinator's binding decision for one proposal.
type Decided struct {
	XtID     uint32
	Decision bool
}

// Block confirms inclusion of committed proposals in a chain block.
type Block struct {
	ChainID       []byte
	BlockData     []byte
	IncludedXtIDs []uint32
}

// Encode serializes a message envelope. The sender id is emitted first,
// followed by the single payload variant.
func Encode(m *Message) ([]byte, error) {
	buf := appendBytesField(nil, fieldSenderID, []byte(m.SenderID))

	switch {
	case m.XTRequest != nil:
		buf = appendBytesField(buf, fieldXTRequest, encodeXTRequest(m.XTRequest))
	case m.Vote != nil:
		buf = appendBytesField(buf, fieldVote, encodeVote(m.Vote))
	case m.Decided != nil:
		buf = appendBytesField(buf, fieldDecided, encodeDecided(m.Decided))
	case m.Block != nil:
		buf = appendBytesField(buf, fieldBlock, encodeBlock(m.Block))
	default:
		return nil, ErrNoPayload
	}

	return buf, nil
}

func encodeXTRequest(x *XTRequest) []byte {
	var buf []byte
	for _, tx := range x.Transactions {
		buf = appendBytesField(buf, 1, encodeTransactionRequest(tx))
	}
	return buf
}

func encodeTransactionRequest(t *TransactionRequest) []byte {
	buf := appendBytesField(nil, 1, t.ChainID)
	for _, raw := range t.Transactions {
		buf = appendBytesField(buf, 2, raw)
	}
	return buf
}

func encodeVote(v *Vote) []byte {
	buf := appendBytesField(nil, 1, v.SenderChainID)
	buf = appendVarintField(buf, 2, uint64(v.XtID))
	buf = appendVarintField(buf, 3, boolBit(v.Vote))
	return buf
}

func encodeDecided(d *Decided) []byte {
	buf := appendVarintField(nil, 1, uint64(d.XtID))
	buf = appendVarintField(buf, 2, boolBit(d.Decision))
	return buf
}

func encodeBlock(b *Block) []byte {
	buf := appendBytesField(nil, 1, b.ChainID)
	buf = appendBytesField(buf, 2, b.BlockData)
	for _, id := range b.IncludedXtIDs {
		buf = appendVarintField(buf, 3, uint64(id))
	}
	return buf
}

// Decode parses a message envelope. Unknown field numbers are skipped per
// their wire type so newer coordinator messages still parse.
func Decode(data []byte) (*Message, error) {
	m := &Message{}

	for pos := 0; pos < len(data); {
		field, wt, n, err := readTag(data[pos:])
		if err != nil {
			return nil, decodeErr("message tag", err)
		}
		pos += n

		if wt == wireLengthDelimited {
			body, n, err := readBytes(data[pos:])
			if err != nil {
				return nil, decodeErr("message field", err)
			}
			pos += n

			switch field {
			case fieldSenderID:
				m.SenderID = string(body)
			case fieldXTRequest:
				if m.XTRequest, err = decodeXTRequest(body); err != nil {
					return nil, err
				}
			case fieldVote:
				if m.Vote, err = decodeVote(body); err != nil {
					return nil, err
				}
			case fieldDecided:
				if m.Decided, err = decodeDecided(body); err != nil {
					return nil, err
				}
			case fieldBlock:
				if m.Block, err = decodeBlock(body); err != nil {
					return nil, err
				}
			}
			continue
		}

		// Varint-typed field: only unknown fields reach here, skip the value.
		n, err = skipValue(data[pos:], wt)
		if err != nil {
			return nil, decodeErr("message field", err)
		}
		pos += n
	}

	return m, nil
}

func decodeXTRequest(data []byte) (*XTRequest, error) {
	x := &XTRequest{}

	for pos := 0; pos < len(data); {
		field, wt, n, err := readTag(data[pos:])
		if err != nil {
			return nil, decodeErr("xt_request tag", err)
		}
		pos += n

		if field == 1 && wt == wireLengthDelimited {
			body, n, err := readBytes(data[pos:])
			if err != nil {
				return nil, decodeErr("xt_request.transactions", err)
			}
			pos += n

			tx, err := decodeTransactionRequest(body)
			if err != nil {
				return nil, err
			}
			x.Transactions = append(x.Transactions, tx)
			continue
		}

		n, err = skipValue(data[pos:], wt)
		if err != nil {
			return nil, decodeErr("xt_request field", err)
		}
		pos += n
	}

	return x, nil
}

func decodeTransactionRequest(data []byte) (*TransactionRequest, error) {
	t := &TransactionRequest{}

	for pos := 0; pos < len(data); {
		field, wt, n, err := readTag(data[pos:])
		if err != nil {
			return nil, decodeErr("transaction_request tag", err)
		}
		pos += n

		if wt == wireLengthDelimited {
			body, n, err := readBytes(data[pos:])
			if err != nil {
				return nil, decodeErr("transaction_request field", err)
			}
			pos += n

			switch field {
			case 1:
				t.ChainID = body
			case 2:
				t.Transactions = append(t.Transactions, body)
			}
			continue
		}

		n, err = skipValue(data[pos:], wt)
		if err != nil {
			return nil, decodeErr("transaction_request field", err)
		}
		pos += n
	}

	return t, nil
}

func decodeVote(data []byte) (*Vote, error) {
	v := &Vote{}

	for pos := 0; pos < len(data); {
		field, wt, n, err := readTag(data[pos:])
		if err != nil {
			return nil, decodeErr("vote tag", err)
		}
		pos += n

		switch {
		case field == 1 && wt == wireLengthDelimited:
			body, n, err := readBytes(data[pos:])
			if err != nil {
				return nil, decodeErr("vote.sender_chain_id", err)
			}
			v.SenderChainID = body
			pos += n
		case field == 2 && wt == wireVarint:
			val, n, err := readVarint(data[pos:])
			if err != nil {
				return nil, decodeErr("vote.xt_id", err)
			}
			v.XtID = uint32(val)
			pos += n
		case field == 3 && wt == wireVarint:
			val, n, err := readVarint(data[pos:])
			if err != nil {
				return nil, decodeErr("vote.vote", err)
			}
			v.Vote = val != 0
			pos += n
		default:
			n, err := skipValue(data[pos:], wt)
			if err != nil {
				return nil, decodeErr("vote field", err)
			}
			pos += n
		}
	}

	return v, nil
}

func decodeDecided(data []byte) (*Decided, error) {
	d := &Decided{}

	for pos := 0; pos < len(data); {
		field, wt, n, err := readTag(data[pos:])
		if err != nil {
			return nil, decodeErr("decided tag", err)
		}
		pos += n

		switch {
		case field == 1 && wt == wireVarint:
			val, n, err := readVarint(data[pos:])
			if err != nil {
				return nil, decodeErr("decided.xt_id", err)
			}
			d.XtID = uint32(val)
			pos += n
		case field == 2 && wt == wireVarint:
			val, n, err := readVarint(data[pos:])
			if err != nil {
				return nil, decodeErr("decided.decision", err)
			}
			d.Decision = val != 0
			pos += n
		default:
			n, err := skipValue(data[pos:], wt)
			if err != nil {
				return nil, decodeErr("decided field", err)
			}
			pos += n
		}
	}

	return d, nil
}

func decodeBlock(data []byte) (*Block, error) {
	b := &Block{}

	for pos := 0; pos < len(data); {
		field, wt, n, err := readTag(data[pos:])
		if err != nil {
			return nil, decodeErr("block tag", err)
		}
		pos += n

		switch {
		case field == 1 && wt == wireLengthDelimited:
			body, n, err := readBytes(data[pos:])
			if err != nil {
				return nil, decodeErr("block.chain_id", err)
			}
			b.ChainID = body
			pos += n
		case field == 2 && wt == wireLengthDelimited:
			body, n, err := readBytes(data[pos:])
			if err != nil {
				return nil, decodeErr("block.block_data", err)
			}
			b.BlockData = body
			pos += n
		case field == 3 && wt == wireVarint:
			val, n, err := readVarint(data[pos:])
			if err != nil {
				return nil, decodeErr("block.included_xt_ids", err)
			}
			b.IncludedXtIDs = append(b.IncludedXtIDs, uint32(val))
			pos += n
		default:
			n, err := skipValue(data[pos:], wt)
			if err != nil {
				return nil, decodeErr("block field", err)
			}
			pos += n
		}
	}

	return b, nil
}

// appendVarint encodes v as a base-128 varint, 7 bits per byte, low group
// first, continuation bit on all but the last byte.
func appendVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v&0x7f)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

func appendTag(buf []byte, field, wt int) []byte {
	return appendVarint(buf, uint64(field)<<3|uint64(wt))
}

// appendBytesField emits a length-delimited field. The length is always a
// varint, never a bare byte, so payloads past 127 bytes frame correctly.
func appendBytesField(buf []byte, field int, body []byte) []byte {
	buf = appendTag(buf, field, wireLengthDelimited)
	buf = appendVarint(buf, uint64(len(body)))
	return append(buf, body...)
}

func appendVarintField(buf []byte, field int, v uint64) []byte {
	buf = appendTag(buf, field, wireVarint)
	return appendVarint(buf, v)
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// readVarint decodes a varint from the front of data, returning the value
// and the number of bytes consumed.
func readVarint(data []byte) (uint64, int, error) {
	var v uint64
	var shift uint

	for i := 0; i < len(data); i++ {
		b := data[i]
		if shift >= 64 {
			return 0, 0, ErrMalformedVarint
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}

	return 0, 0, ErrMalformedVarint
}

func readTag(data []byte) (field int, wt int, n int, err error) {
	tag, n, err := readVarint(data)
	if err != nil {
		return 0, 0, 0, err
	}
	return int(tag >> 3), int(tag & 0x7), n, nil
}

// readBytes reads a varint length followed by that many bytes.
func readBytes(data []byte) ([]byte, int, error) {
	l, n, err := readVarint(data)
	if err != nil {
		return nil, 0, err
	}
	if l > uint64(len(data)-n) {
		return nil, 0, ErrTruncatedMessage
	}
	end := n + int(l)
	return data[n:end], end, nil
}

// skipValue advances past an unrecognized field's value.
func skipValue(data []byte, wt int) (int, error) {
	switch wt {
	case wireVarint:
		_, n, err := readVarint(data)
		return n, err
	case wireLengthDelimited:
		_, n, err := readBytes(data)
		return n, err
	default:
		return 0, decodeErr("unknown field", ErrTruncatedMessage)
	}
}
