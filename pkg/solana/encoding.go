package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/pkg/errors"

	"github.com/code-payments/vault-server/pkg/solana/shortvec"
)

// Versioned messages set the high bit of the first byte, which legacy messages
// never do since it holds the signature count.
const versionPrefixMask = 0x80

func (t Transaction) Marshal() []byte {
	b := bytes.NewBuffer(nil)

	_, _ = shortvec.EncodeLen(b, len(t.Signatures))
	for _, s := range t.Signatures {
		_, _ = b.Write(s[:])
	}

	_, _ = b.Write(t.Message.Marshal())

	return b.Bytes()
}

func (t *Transaction) Unmarshal(b []byte) error {
	buf := bytes.NewBuffer(b)

	sigLen, err := shortvec.DecodeLen(buf)
	if err != nil {
		return errors.Wrap(err, "failed to read signature length")
	}

	t.Signatures = make([]Signature, sigLen)
	for i := 0; i < sigLen; i++ {
		if _, err = io.ReadFull(buf, t.Signatures[i][:]); err != nil {
			return errors.Wrapf(err, "failed to read signature at %d", i)
		}
	}

	if err := (&t.Message).Unmarshal(buf.Bytes()); err != nil {
		return err
	}

	if sigLen != int(t.Message.Header.NumSignatures) {
		return errors.Errorf("signature count mismatch: %d != %d", sigLen, t.Message.Header.NumSignatures)
	}
	return nil
}

func (m Message) Marshal() []byte {
	b := bytes.NewBuffer(nil)

	switch m.version {
	case MessageVersionLegacy:
	case MessageVersion0:
		_ = b.WriteByte(versionPrefixMask | byte(m.version-MessageVersion0))
	default:
		panic("unsupported message version")
	}

	_ = b.WriteByte(m.Header.NumSignatures)
	_ = b.WriteByte(m.Header.NumReadonlySigned)
	_ = b.WriteByte(m.Header.NumReadOnly)

	_, _ = shortvec.EncodeLen(b, len(m.Accounts))
	for _, a := range m.Accounts {
		_, _ = b.Write(a)
	}

	_, _ = b.Write(m.RecentBlockhash[:])

	_, _ = shortvec.EncodeLen(b, len(m.Instructions))
	for _, i := range m.Instructions {
		_ = b.WriteByte(i.ProgramIndex)

		_, _ = shortvec.EncodeLen(b, len(i.Accounts))
		_, _ = b.Write(i.Accounts)

		_, _ = shortvec.EncodeLen(b, len(i.Data))
		_, _ = b.Write(i.Data)
	}

	if m.version == MessageVersionLegacy {
		return b.Bytes()
	}

	_, _ = shortvec.EncodeLen(b, len(m.AddressTableLookups))
	for _, lookup := range m.AddressTableLookups {
		_, _ = b.Write(lookup.PublicKey)

		_, _ = shortvec.EncodeLen(b, len(lookup.WritableIndexes))
		_, _ = b.Write(lookup.WritableIndexes)

		_, _ = shortvec.EncodeLen(b, len(lookup.ReadonlyIndexes))
		_, _ = b.Write(lookup.ReadonlyIndexes)
	}

	return b.Bytes()
}

func (m *Message) Unmarshal(b []byte) (err error) {
	if len(b) == 0 {
		return errors.New("empty message")
	}

	buf := bytes.NewBuffer(b)

	m.version = MessageVersionLegacy
	if b[0]&versionPrefixMask != 0 {
		prefix, _ := buf.ReadByte()
		if prefix&^versionPrefixMask != 0 {
			return errors.Errorf("unsupported message version: %d", prefix&^versionPrefixMask)
		}
		m.version = MessageVersion0
	}

	if m.Header.NumSignatures, err = buf.ReadByte(); err != nil {
		return errors.Wrap(err, "failed to read num signatures")
	}
	if m.Header.NumReadonlySigned, err = buf.ReadByte(); err != nil {
		return errors.Wrap(err, "failed to read num readonly signatures")
	}
	if m.Header.NumReadOnly, err = buf.ReadByte(); err != nil {
		return errors.Wrap(err, "failed to read num readonly")
	}

	accountLen, err := shortvec.DecodeLen(buf)
	if err != nil {
		return errors.Wrap(err, "failed to read account len")
	}
	m.Accounts = make([]ed25519.PublicKey, accountLen)
	for i := 0; i < accountLen; i++ {
		m.Accounts[i] = make([]byte, ed25519.PublicKeySize)
		if _, err = io.ReadFull(buf, m.Accounts[i]); err != nil {
			return errors.Wrapf(err, "failed to read account at index %d", i)
		}
	}

	if _, err = io.ReadFull(buf, m.RecentBlockhash[:]); err != nil {
		return errors.Wrap(err, "failed to read recent block hash")
	}

	instructionLen, err := shortvec.DecodeLen(buf)
	if err != nil {
		return errors.Wrap(err, "failed to read instruction len")
	}
	m.Instructions = make([]CompiledInstruction, instructionLen)
	for i := 0; i < instructionLen; i++ {
		var c CompiledInstruction

		if c.ProgramIndex, err = buf.ReadByte(); err != nil {
			return errors.Wrapf(err, "failed to read instruction[%d] program index", i)
		}

		if c.Accounts, err = readShortVecBytes(buf); err != nil {
			return errors.Wrapf(err, "failed to read instruction[%d] accounts", i)
		}
		if c.Data, err = readShortVecBytes(buf); err != nil {
			return errors.Wrapf(err, "failed to read instruction[%d] data", i)
		}

		m.Instructions[i] = c
	}

	m.AddressTableLookups = nil
	if m.version == MessageVersion0 {
		lookupLen, err := shortvec.DecodeLen(buf)
		if err != nil {
			return errors.Wrap(err, "failed to read address table lookup len")
		}

		for i := 0; i < lookupLen; i++ {
			lookup := MessageAddressTableLookup{
				PublicKey: make([]byte, ed25519.PublicKeySize),
			}
			if _, err = io.ReadFull(buf, lookup.PublicKey); err != nil {
				return errors.Wrapf(err, "failed to read address table lookup[%d] key", i)
			}
			if lookup.WritableIndexes, err = readShortVecBytes(buf); err != nil {
				return errors.Wrapf(err, "failed to read address table lookup[%d] writable indexes", i)
			}
			if lookup.ReadonlyIndexes, err = readShortVecBytes(buf); err != nil {
				return errors.Wrapf(err, "failed to read address table lookup[%d] readonly indexes", i)
			}
			m.AddressTableLookups = append(m.AddressTableLookups, lookup)
		}
	}

	indexSpace := m.numLoadedAccounts() + len(m.Accounts)
	for i, c := range m.Instructions {
		if int(c.ProgramIndex) >= len(m.Accounts) {
			return errors.Errorf("program index out of range: %d:%d", i, c.ProgramIndex)
		}
		for _, index := range c.Accounts {
			if int(index) >= indexSpace {
				return errors.Errorf("account index out of range: %d:%d", i, index)
			}
		}
	}

	return nil
}

func (m Message) numLoadedAccounts() int {
	var n int
	for _, lookup := range m.AddressTableLookups {
		n += len(lookup.WritableIndexes) + len(lookup.ReadonlyIndexes)
	}
	return n
}

func readShortVecBytes(buf *bytes.Buffer) ([]byte, error) {
	n, err := shortvec.DecodeLen(buf)
	if err != nil {
		return nil, err
	}

	b := make([]byte, n)
	if _, err = io.ReadFull(buf, b); err != nil {
		return nil, err
	}
	return b, nil
}
