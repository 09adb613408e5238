package contracts

import (
	"testing"

	"github.com/nspcc-dev/pesto-go/pkg/contracts/pesto"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/stretchr/testify/require"
)

type fakeContract struct {
	interop.ContractMD
}

func (f *fakeContract) Metadata() *interop.ContractMD { return &f.ContractMD }

func newFake(name string, standards ...string) *fakeContract {
	f := &fakeContract{ContractMD: *interop.NewContractMD(name)}
	f.AddMethod(&interop.MethodAndPrice{
		Func: func(*interop.Context, []stackitem.Item) stackitem.Item { return stackitem.Make(name) },
	}, &manifest.Method{Name: "name", Parameters: []manifest.Parameter{}, ReturnType: smartcontract.StringType, Safe: true})
	for _, s := range standards {
		f.AddStandard(s)
	}
	return f
}

func TestNewDefault(t *testing.T) {
	r := NewDefault()
	require.Equal(t, []string{"PestoNftToken", "PestoToken", "Staking"}, r.Names())

	c, err := r.GetFactory(pesto.FactoryName)
	require.NoError(t, err)
	require.Equal(t, pesto.FactoryName, c.Metadata().Name)

	_, err = r.GetFactory("Lock")
	require.ErrorIs(t, err, interop.ErrUnknownFactory)

	list := r.List()
	require.Len(t, list, 3)
	require.Equal(t, "PestoNftToken", list[0].Name)
}

func TestRegister(t *testing.T) {
	r, err := NewRegistry(newFake("Foo"))
	require.NoError(t, err)

	t.Run("duplicate", func(t *testing.T) {
		require.Error(t, r.Register(newFake("Foo")))
	})
	t.Run("invalid manifest", func(t *testing.T) {
		f := &fakeContract{ContractMD: *interop.NewContractMD("Empty")}
		require.Error(t, r.Register(f))
	})
	t.Run("non-compliant", func(t *testing.T) {
		require.Error(t, r.Register(newFake("Bar", manifest.ERC20StandardName)))
	})
	t.Run("unknown standard", func(t *testing.T) {
		require.NoError(t, r.Register(newFake("Baz", "ERC-1155")))
	})
	require.Equal(t, []string{"Baz", "Foo"}, r.Names())
}
