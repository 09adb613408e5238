package io

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type testSerializable uint16

func (t *testSerializable) EncodeBinary(w *BinWriter) {
	w.WriteB(byte(*t))
	w.WriteB(byte(*t >> 8))
}

func (t *testSerializable) DecodeBinary(r *BinReader) {
	lo := r.ReadB()
	hi := r.ReadB()
	*t = testSerializable(uint16(hi)<<8 | uint16(lo))
}

func TestWriteReadScalars(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteU64LE(0xdeadbeefcafe)
	bw.WriteU32LE(0x1234)
	bw.WriteB(7)
	bw.WriteBool(true)
	bw.WriteString("pesto")
	bw.WriteVarBytes([]byte{1, 2, 3})
	require.NoError(t, bw.Err)

	br := NewBinReaderFromBuf(bw.Bytes())
	require.Equal(t, uint64(0xdeadbeefcafe), br.ReadU64LE())
	require.Equal(t, uint32(0x1234), br.ReadU32LE())
	require.Equal(t, byte(7), br.ReadB())
	require.True(t, br.ReadBool())
	require.Equal(t, "pesto", br.ReadString())
	require.Equal(t, []byte{1, 2, 3}, br.ReadVarBytes())
	require.NoError(t, br.Err)

	br.ReadB()
	require.Error(t, br.Err)
}

func TestVarUint(t *testing.T) {
	for _, v := range []uint64{0, 0xfc, 0xfd, 0xfffe, 0x10000, 0xfffffffe, 0x100000000} {
		bw := NewBufBinWriter()
		bw.WriteVarUint(v)
		require.NoError(t, bw.Err)
		br := NewBinReaderFromBuf(bw.Bytes())
		require.Equal(t, v, br.ReadVarUint())
		require.NoError(t, br.Err)
	}
}

func TestArray(t *testing.T) {
	arr := []testSerializable{1, 0x102, 0xffff}
	bw := NewBufBinWriter()
	WriteArray(bw.BinWriter, arr)
	require.NoError(t, bw.Err)

	br := NewBinReaderFromBuf(bw.Bytes())
	res := ReadArray[testSerializable](br)
	require.NoError(t, br.Err)
	require.Equal(t, arr, res)

	t.Run("too big", func(t *testing.T) {
		bw := NewBufBinWriter()
		WriteArray(bw.BinWriter, arr)
		br := NewBinReaderFromBuf(bw.Bytes())
		_ = ReadArray[testSerializable](br, 2)
		require.True(t, errors.Is(br.Err, ErrTooBig))
	})
}

func TestBufBinWriterDrained(t *testing.T) {
	bw := NewBufBinWriter()
	bw.WriteB(1)
	require.Equal(t, 1, bw.Len())
	require.Equal(t, []byte{1}, bw.Bytes())
	require.Nil(t, bw.Bytes())
	bw.Reset()
	bw.WriteB(2)
	require.Equal(t, []byte{2}, bw.Bytes())
}
