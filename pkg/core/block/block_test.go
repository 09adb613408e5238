package block

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/io"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

func newTestTX(t *testing.T, nonce uint64) *transaction.Transaction {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	tx := transaction.NewInvokeTX(common.Address{1}, "transfer", []stackitem.Item{stackitem.Make(nonce)})
	tx.Nonce = nonce
	tx.Sender = crypto.PubkeyToAddress(priv.PublicKey)
	tx.Signature, err = crypto.Sign(tx.Hash().Bytes(), priv)
	require.NoError(t, err)
	return tx
}

func TestBlockEncodeDecode(t *testing.T) {
	b := New(5, common.Hash{1, 2, 3}, 1700000000000, []*transaction.Transaction{newTestTX(t, 0), newTestTX(t, 1)})
	b.Bloom.AddNotification(common.Address{1}, "Transfer")
	b.Invalidate()
	require.NoError(t, b.Verify())

	data, err := io.ToByteArray(b)
	require.NoError(t, err)
	actual := new(Block)
	require.NoError(t, io.FromByteArray(actual, data))
	require.Equal(t, b.Hash(), actual.Hash())
	require.Equal(t, 2, len(actual.Transactions))
	require.Equal(t, b.Transactions[1].Hash(), actual.Transactions[1].Hash())
	require.Equal(t, b.Bloom, actual.Bloom)
}

func TestBlockVerify(t *testing.T) {
	tx := newTestTX(t, 0)
	b := New(1, common.Hash{}, 0, []*transaction.Transaction{tx, tx})
	require.Error(t, b.Verify())

	b = New(1, common.Hash{}, 0, []*transaction.Transaction{tx})
	b.TxRoot = common.Hash{1}
	require.Error(t, b.Verify())

	b = New(0, common.Hash{}, 0, nil)
	require.Equal(t, common.Hash{}, b.TxRoot)
	require.NoError(t, b.Verify())
}

func TestTrim(t *testing.T) {
	b := New(7, common.Hash{9}, 42, []*transaction.Transaction{newTestTX(t, 0), newTestTX(t, 1)})
	data, err := b.Trim()
	require.NoError(t, err)

	h, hashes, err := NewTrimmedFromBytes(data)
	require.NoError(t, err)
	require.Equal(t, b.Hash(), h.Hash())
	require.Equal(t, []common.Hash{b.Transactions[0].Hash(), b.Transactions[1].Hash()}, hashes)

	_, _, err = NewTrimmedFromBytes(data[:len(data)-1])
	require.Error(t, err)
}

func TestBlockJSON(t *testing.T) {
	b := New(3, common.Hash{7}, 1234, []*transaction.Transaction{newTestTX(t, 0)})
	data, err := json.Marshal(b)
	require.NoError(t, err)

	actual := new(Block)
	require.NoError(t, json.Unmarshal(data, actual))
	require.Equal(t, b.Hash(), actual.Hash())
	require.Equal(t, b.Transactions[0].Hash(), actual.Transactions[0].Hash())

	empty := New(4, b.Hash(), 1235, nil)
	data, err = json.Marshal(empty)
	require.NoError(t, err)
	require.Contains(t, string(data), `"tx":[]`)
	actual = new(Block)
	require.NoError(t, json.Unmarshal(data, actual))
	require.Equal(t, empty.Hash(), actual.Hash())
}

func TestBloom(t *testing.T) {
	var b Bloom
	c1, c2 := common.Address{1}, common.Address{2}
	require.False(t, b.MayContain(&c1, ""))
	b.AddNotification(c1, "Transfer")
	require.True(t, b.MayContain(&c1, "Transfer"))
	require.True(t, b.MayContain(nil, "Transfer"))
	require.True(t, b.MayContain(&c1, ""))
	require.True(t, b.MayContain(nil, ""))
	require.False(t, b.MayContain(&c2, "Transfer"))
	require.False(t, b.MayContain(&c1, "Approval"))

	data, err := json.Marshal(b)
	require.NoError(t, err)
	var actual Bloom
	require.NoError(t, json.Unmarshal(data, &actual))
	require.Equal(t, b, actual)
	require.Error(t, json.Unmarshal([]byte(`"0x0102"`), &actual))
}
