package stackitem

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/pesto-go/pkg/io"
)

// serContext is an internal serialization context.
type serContext struct {
	*io.BinWriter
	buf *io.BufBinWriter
}

// Serialize encodes given Item into the byte slice.
func Serialize(item Item) ([]byte, error) {
	w := io.NewBufBinWriter()
	sc := serContext{
		BinWriter: w.BinWriter,
		buf:       w,
	}
	sc.serialize(item)
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Bytes(), nil
}

// EncodeBinary encodes given Item into the given BinWriter. It's
// similar to io.Serializable's EncodeBinary, but works with Item
// interface.
func EncodeBinary(item Item, w *io.BinWriter) {
	sc := serContext{
		BinWriter: w,
	}
	sc.serialize(item)
}

func (w *serContext) serialize(item Item) {
	if w.Err != nil {
		return
	}

	switch t := item.(type) {
	case *ByteArray:
		w.WriteB(byte(ByteArrayT))
		w.WriteVarBytes(*t)
	case Bool:
		w.WriteB(byte(BooleanT))
		w.WriteBool(bool(t))
	case *BigInteger:
		w.WriteB(byte(IntegerT))
		w.WriteBool(t.Big().Sign() < 0)
		w.WriteVarBytes(t.Big().Bytes())
	case *Array:
		w.WriteB(byte(ArrayT))
		w.WriteVarUint(uint64(len(t.value)))
		for i := range t.value {
			w.serialize(t.value[i])
		}
	case Null:
		w.WriteB(byte(AnyT))
	case nil:
		w.Err = errors.New("invalid stack item")
	}

	if w.Err == nil && w.buf != nil && w.buf.Len() > MaxSize {
		w.Err = errors.New("too big item")
	}
}

// Deserialize decodes Item from the given byte slice.
func Deserialize(data []byte) (Item, error) {
	r := io.NewBinReaderFromBuf(data)
	item := DecodeBinary(r)
	if r.Err != nil {
		return nil, r.Err
	}
	return item, nil
}

// DecodeBinary decodes previously serialized Item from the given
// reader. It's similar to the io.Serializable's DecodeBinary(), but implemented
// as a function because Item itself is an interface. Caveat: always check
// reader's error value before using the returned Item.
func DecodeBinary(r *io.BinReader) Item {
	var t = Type(r.ReadB())
	if r.Err != nil {
		return nil
	}

	switch t {
	case ByteArrayT:
		data := r.ReadVarBytes(MaxSize)
		return NewByteArray(data)
	case BooleanT:
		var b = r.ReadBool()
		return NewBool(b)
	case IntegerT:
		neg := r.ReadBool()
		data := r.ReadVarBytes(MaxBigIntegerSizeBits / 8)
		num := new(big.Int).SetBytes(data)
		if neg {
			num.Neg(num)
		}
		return NewBigInteger(num)
	case ArrayT:
		size := int(r.ReadVarUint())
		if size > MaxArraySize {
			r.Err = errTooBigElements
			return nil
		}
		arr := make([]Item, size)
		for i := 0; i < size; i++ {
			arr[i] = DecodeBinary(r)
		}
		return NewArray(arr)
	case AnyT:
		return Null{}
	default:
		r.Err = fmt.Errorf("unknown type: %v", t)
		return nil
	}
}
