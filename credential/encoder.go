package credential

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Binary record layout, version 1. Offsets are fixed so the rotation Lua
// script can patch state and successor in place; the variable-length
// account id must stay last.
//
//	offset  size  field
//	0       1     format version
//	1       1     state
//	2       36    id (uuid text)
//	38      36    chain root
//	74      36    predecessor
//	110     36    successor
//	146     32    secret hash (sha-256, raw)
//	178     8     issued-at (unix seconds, big endian)
//	186     8     expires-at (unix seconds, big endian)
//	194     1     account id length
//	195     n     account id
const (
	recordFormatVersion = 1

	idWidth      = 36
	stateOffset  = 1
	recordMinLen = 195
)

var errCorruptRecord = errors.New("corrupt credential record")

func Encode(r *Record) ([]byte, error) {
	if len(r.ID) != idWidth || len(r.ChainRoot) != idWidth ||
		len(r.Predecessor) != idWidth || len(r.Successor) != idWidth {
		return nil, errors.New("credential id fields must be canonical uuid text")
	}
	if len(r.AccountID) == 0 || len(r.AccountID) > 255 {
		return nil, errors.New("account id must be 1-255 bytes")
	}

	var buf bytes.Buffer
	buf.Grow(recordMinLen + len(r.AccountID))

	buf.WriteByte(recordFormatVersion)
	buf.WriteByte(byte(r.State))
	buf.WriteString(r.ID)
	buf.WriteString(r.ChainRoot)
	buf.WriteString(r.Predecessor)
	buf.WriteString(r.Successor)
	buf.Write(r.SecretHash[:])

	if err := binary.Write(&buf, binary.BigEndian, r.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	buf.WriteByte(byte(len(r.AccountID)))
	buf.WriteString(r.AccountID)

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Record, error) {
	if len(data) < recordMinLen+1 {
		return nil, errCorruptRecord
	}

	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersion {
		return nil, errCorruptRecord
	}

	r := &Record{}

	state, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if state > byte(StateRevoked) {
		return nil, errCorruptRecord
	}
	r.State = State(state)

	var id [idWidth]byte
	for _, dst := range []*string{&r.ID, &r.ChainRoot, &r.Predecessor, &r.Successor} {
		if _, err := io.ReadFull(reader, id[:]); err != nil {
			return nil, errCorruptRecord
		}
		*dst = string(id[:])
	}

	if _, err := io.ReadFull(reader, r.SecretHash[:]); err != nil {
		return nil, errCorruptRecord
	}

	if err := binary.Read(reader, binary.BigEndian, &r.IssuedAt); err != nil {
		return nil, errCorruptRecord
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, errCorruptRecord
	}

	acctLen, err := reader.ReadByte()
	if err != nil {
		return nil, errCorruptRecord
	}
	acct := make([]byte, acctLen)
	if _, err := io.ReadFull(reader, acct); err != nil {
		return nil, errCorruptRecord
	}
	r.AccountID = string(acct)

	return r, nil
}
