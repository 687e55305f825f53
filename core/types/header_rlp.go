package types

import (
	"errors"

	"github.com/openintentsframework/stateproofs/rlp"
	"golang.org/x/crypto/sha3"
)

// ErrHeaderTrailing is returned when a header encoding carries unexpected
// trailing fields.
var ErrHeaderTrailing = errors.New("types: trailing data in header encoding")

// EncodeRLP returns the RLP encoding of the header in Yellow Paper field
// order, with the post-merge optional tail (BaseFee, WithdrawalsHash,
// BlobGasUsed, ExcessBlobGas, ParentBeaconRoot, RequestsHash) appended only
// for non-nil fields.
func (h *Header) EncodeRLP() []byte {
	var p []byte
	p = rlp.AppendString(p, h.ParentHash[:])
	p = rlp.AppendString(p, h.UncleHash[:])
	p = rlp.AppendString(p, h.Coinbase[:])
	p = rlp.AppendString(p, h.Root[:])
	p = rlp.AppendString(p, h.TxHash[:])
	p = rlp.AppendString(p, h.ReceiptHash[:])
	p = rlp.AppendString(p, h.Bloom[:])
	p = rlp.AppendBigInt(p, h.Difficulty)
	p = rlp.AppendBigInt(p, h.Number)
	p = rlp.AppendUint64(p, h.GasLimit)
	p = rlp.AppendUint64(p, h.GasUsed)
	p = rlp.AppendUint64(p, h.Time)
	p = rlp.AppendString(p, h.Extra)
	p = rlp.AppendString(p, h.MixDigest[:])
	p = rlp.AppendString(p, h.Nonce[:])

	if h.BaseFee != nil {
		p = rlp.AppendBigInt(p, h.BaseFee)
	}
	if h.WithdrawalsHash != nil {
		p = rlp.AppendString(p, h.WithdrawalsHash[:])
	}
	if h.BlobGasUsed != nil {
		p = rlp.AppendUint64(p, *h.BlobGasUsed)
	}
	if h.ExcessBlobGas != nil {
		p = rlp.AppendUint64(p, *h.ExcessBlobGas)
	}
	if h.ParentBeaconRoot != nil {
		p = rlp.AppendString(p, h.ParentBeaconRoot[:])
	}
	if h.RequestsHash != nil {
		p = rlp.AppendString(p, h.RequestsHash[:])
	}
	return rlp.WrapList(p)
}

// DecodeHeaderRLP decodes an RLP-encoded header. The input is untrusted:
// malformed encodings and trailing data are rejected.
func DecodeHeaderRLP(data []byte) (*Header, error) {
	s := rlp.NewStream(data)
	if _, err := s.List(); err != nil {
		return nil, err
	}

	h := &Header{}
	var err error

	if err = decodeHash(s, &h.ParentHash); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.UncleHash); err != nil {
		return nil, err
	}
	if err = decodeAddress(s, &h.Coinbase); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.Root); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.TxHash); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.ReceiptHash); err != nil {
		return nil, err
	}
	if err = decodeBloom(s, &h.Bloom); err != nil {
		return nil, err
	}
	if h.Difficulty, err = s.BigInt(); err != nil {
		return nil, err
	}
	if h.Number, err = s.BigInt(); err != nil {
		return nil, err
	}
	if h.GasLimit, err = s.Uint64(); err != nil {
		return nil, err
	}
	if h.GasUsed, err = s.Uint64(); err != nil {
		return nil, err
	}
	if h.Time, err = s.Uint64(); err != nil {
		return nil, err
	}
	if h.Extra, err = s.Bytes(); err != nil {
		return nil, err
	}
	if err = decodeHash(s, &h.MixDigest); err != nil {
		return nil, err
	}
	if err = decodeBlockNonce(s, &h.Nonce); err != nil {
		return nil, err
	}

	// Optional tail, read in protocol order until the list ends.
	if !s.AtListEnd() {
		if h.BaseFee, err = s.BigInt(); err != nil {
			return nil, err
		}
	}
	if !s.AtListEnd() {
		var wh Hash
		if err = decodeHash(s, &wh); err != nil {
			return nil, err
		}
		h.WithdrawalsHash = &wh
	}
	if !s.AtListEnd() {
		bgu, err := s.Uint64()
		if err != nil {
			return nil, err
		}
		h.BlobGasUsed = &bgu
	}
	if !s.AtListEnd() {
		ebg, err := s.Uint64()
		if err != nil {
			return nil, err
		}
		h.ExcessBlobGas = &ebg
	}
	if !s.AtListEnd() {
		var pbr Hash
		if err = decodeHash(s, &pbr); err != nil {
			return nil, err
		}
		h.ParentBeaconRoot = &pbr
	}
	if !s.AtListEnd() {
		var rh Hash
		if err = decodeHash(s, &rh); err != nil {
			return nil, err
		}
		h.RequestsHash = &rh
	}
	if !s.AtListEnd() {
		return nil, ErrHeaderTrailing
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return h, nil
}

// decodeHash reads an RLP string into a Hash.
func decodeHash(s *rlp.Stream, h *Hash) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	if len(b) > HashLength {
		return rlp.ErrCanonSize
	}
	copy(h[HashLength-len(b):], b)
	return nil
}

// decodeAddress reads an RLP string into an Address.
func decodeAddress(s *rlp.Stream, a *Address) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	if len(b) > AddressLength {
		return rlp.ErrCanonSize
	}
	copy(a[AddressLength-len(b):], b)
	return nil
}

// decodeBloom reads an RLP string into a Bloom.
func decodeBloom(s *rlp.Stream, bl *Bloom) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	if len(b) > BloomLength {
		return rlp.ErrCanonSize
	}
	copy(bl[BloomLength-len(b):], b)
	return nil
}

// decodeBlockNonce reads an RLP string into a BlockNonce.
func decodeBlockNonce(s *rlp.Stream, n *BlockNonce) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	if len(b) > NonceLength {
		return rlp.ErrCanonSize
	}
	copy(n[NonceLength-len(b):], b)
	return nil
}

// computeHeaderHash computes the keccak256 hash of the RLP-encoded header.
// Kept local to avoid an import cycle with the crypto package.
func computeHeaderHash(h *Header) Hash {
	d := sha3.NewLegacyKeccak256()
	d.Write(h.EncodeRLP())
	var hash Hash
	copy(hash[:], d.Sum(nil))
	return hash
}
