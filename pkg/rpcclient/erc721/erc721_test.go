package erc721_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pestonft"
	"github.com/nspcc-dev/pesto-go/pkg/neotest/chain"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/erc721"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/invoker"
	"github.com/nspcc-dev/pesto-go/pkg/rpcclient/local"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	bc, _ := chain.NewSingle(t)
	c := local.New(context.Background(), bc)
	accs, err := actor.Signers(c)
	require.NoError(t, err)
	owner, err := actor.New(c, accs[0])
	require.NoError(t, err)
	user, err := actor.New(c, accs[1])
	require.NoError(t, err)

	f, err := owner.Factory(pestonft.FactoryName)
	require.NoError(t, err)
	addr, _, err := f.Deploy()
	require.NoError(t, err)

	r := erc721.NewReader(invoker.New(c, nil), addr)
	require.Equal(t, addr, r.Address())
	name, err := r.Name()
	require.NoError(t, err)
	require.Equal(t, pestonft.Name, name)
	sym, err := r.Symbol()
	require.NoError(t, err)
	require.Equal(t, pestonft.Symbol, sym)
	for _, id := range []erc721.InterfaceID{erc721.InterfaceERC165, erc721.InterfaceERC721} {
		ok, err := r.SupportsInterface(id)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := r.SupportsInterface(erc721.InterfaceID{0xff, 0xff, 0xff, 0xff})
	require.NoError(t, err)
	require.False(t, ok)

	_, err = r.OwnerOf(uint256.NewInt(1))
	require.Error(t, err)

	tok := erc721.New(owner, addr)
	aer, err := owner.Wait(tok.MintCollectionNFT(owner.Sender(), uint256.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, aer.VMState, aer.FaultException)
	transfers, err := erc721.TransferEventsFromApplicationLog(aer, addr)
	require.NoError(t, err)
	require.Equal(t, []*erc721.TransferEvent{{To: owner.Sender(), TokenID: uint256.NewInt(1)}}, transfers)

	_, err = owner.Wait(tok.MintCollectionNFT(owner.Sender(), uint256.NewInt(2)))
	require.NoError(t, err)
	supply, err := r.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(2), supply)

	utok := erc721.New(user, addr)
	aer, err = user.Wait(utok.MintCollectionNFT(user.Sender(), uint256.NewInt(3)))
	require.NoError(t, err)
	require.Equal(t, vmstate.Fault, aer.VMState)

	aer, err = owner.Wait(tok.Approve(user.Sender(), uint256.NewInt(1)))
	require.NoError(t, err)
	approvals, err := erc721.ApprovalEventsFromApplicationLog(aer, addr)
	require.NoError(t, err)
	require.Equal(t, []*erc721.ApprovalEvent{{Owner: owner.Sender(), Approved: user.Sender(), TokenID: uint256.NewInt(1)}}, approvals)
	approved, err := r.GetApproved(uint256.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, user.Sender(), approved)

	aer, err = user.Wait(utok.TransferFrom(owner.Sender(), user.Sender(), uint256.NewInt(1)))
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, aer.VMState, aer.FaultException)
	holder, err := r.OwnerOf(uint256.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, user.Sender(), holder)
	approved, err = r.GetApproved(uint256.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, common.Address{}, approved)

	aer, err = owner.Wait(tok.SetApprovalForAll(user.Sender(), true))
	require.NoError(t, err)
	all, err := erc721.ApprovalForAllEventsFromApplicationLog(aer, addr)
	require.NoError(t, err)
	require.Equal(t, []*erc721.ApprovalForAllEvent{{Owner: owner.Sender(), Operator: user.Sender(), Approved: true}}, all)
	isAll, err := r.IsApprovedForAll(owner.Sender(), user.Sender())
	require.NoError(t, err)
	require.True(t, isAll)

	aer, err = user.Wait(utok.SafeTransferFrom(owner.Sender(), accs[2].Address, uint256.NewInt(2), nil))
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, aer.VMState, aer.FaultException)
	aer, err = user.Wait(utok.SafeTransferFrom(user.Sender(), owner.Sender(), uint256.NewInt(1), []byte("data")))
	require.NoError(t, err)
	require.Equal(t, vmstate.Halt, aer.VMState, aer.FaultException)

	bal, err := r.BalanceOf(owner.Sender())
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1), bal)
	bal, err = r.BalanceOf(accs[2].Address)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1), bal)

	tx, err := tok.TransferFromTransaction(owner.Sender(), user.Sender(), uint256.NewInt(1))
	require.NoError(t, err)
	require.NoError(t, bc.VerifyTx(tx))
}
