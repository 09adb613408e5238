package neorpc

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestBlockFilterCopy(t *testing.T) {
	var bf, tf *BlockFilter

	require.Nil(t, bf.Copy())

	bf = new(BlockFilter)
	tf = bf.Copy()
	require.Equal(t, bf, tf)

	bf.Since = new(uint32)
	*bf.Since = 42
	tf = bf.Copy()
	require.Equal(t, bf, tf)
	*bf.Since = 100500
	require.NotEqual(t, bf, tf)

	bf.Till = new(uint32)
	*bf.Till = 100501
	tf = bf.Copy()
	require.Equal(t, bf, tf)
	require.NoError(t, bf.IsValid())

	*bf.Till = 1
	require.ErrorIs(t, bf.IsValid(), ErrInvalidSubscriptionFilter)
}

func TestNotificationFilterCopy(t *testing.T) {
	var nf, tf *NotificationFilter

	require.Nil(t, nf.Copy())

	nf = new(NotificationFilter)
	tf = nf.Copy()
	require.Equal(t, nf, tf)

	nf.Contract = &common.Address{1, 2, 3}
	tf = nf.Copy()
	require.Equal(t, nf, tf)
	*nf.Contract = common.Address{3, 2, 1}
	require.NotEqual(t, nf, tf)

	nf.Name = new(string)
	*nf.Name = "Transfer"
	tf = nf.Copy()
	require.Equal(t, nf, tf)
	*nf.Name = "Approval"
	require.NotEqual(t, nf, tf)
	require.NoError(t, nf.IsValid())

	*nf.Name = strings.Repeat("x", 33)
	require.ErrorIs(t, nf.IsValid(), ErrInvalidSubscriptionFilter)
}

func TestExecutionFilterCopy(t *testing.T) {
	var ef, tf *ExecutionFilter

	require.Nil(t, ef.Copy())

	ef = new(ExecutionFilter)
	tf = ef.Copy()
	require.Equal(t, ef, tf)

	ef.State = new(string)
	*ef.State = "HALT"
	tf = ef.Copy()
	require.Equal(t, ef, tf)
	*ef.State = "FAULT"
	require.NotEqual(t, ef, tf)
	require.NoError(t, ef.IsValid())

	ef.Container = &common.Hash{1, 2, 3}
	tf = ef.Copy()
	require.Equal(t, ef, tf)
	*ef.Container = common.Hash{3, 2, 1}
	require.NotEqual(t, ef, tf)

	*ef.State = "NONE"
	require.ErrorIs(t, ef.IsValid(), ErrInvalidSubscriptionFilter)
}

func TestEventIDString(t *testing.T) {
	for _, id := range []EventID{BlockEventID, NotificationEventID, ExecutionEventID, MissedEventID} {
		parsed, err := GetEventIDFromString(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	}
	_, err := GetEventIDFromString("transaction_added")
	require.Error(t, err)
	require.Equal(t, "unknown", InvalidEventID.String())
}

func TestErrorIs(t *testing.T) {
	err := WrapErrorWithData(ErrInvalidNonce, "expected 5")
	require.ErrorIs(t, err, ErrInvalidNonce)
	require.NotErrorIs(t, err, ErrAlreadyExists)
	require.Equal(t, "Invalid transaction nonce. (-502) - expected 5", err.Error())
}
