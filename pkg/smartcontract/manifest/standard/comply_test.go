package standard

import (
	"slices"
	"testing"

	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
	"github.com/stretchr/testify/require"
)

func fooMethodBarEvent() *manifest.Manifest {
	return &manifest.Manifest{
		ABI: manifest.ABI{
			Methods: []manifest.Method{
				{
					Name: "foo",
					Parameters: []manifest.Parameter{
						{Type: smartcontract.Uint256Type},
						{Type: smartcontract.AddressType},
					},
					ReturnType: smartcontract.BytesType,
					Safe:       true,
				},
			},
			Events: []manifest.Event{
				{
					Name: "bar",
					Parameters: []manifest.Parameter{
						{Type: smartcontract.StringType},
					},
				},
			},
		},
	}
}

func TestComplyMissingMethod(t *testing.T) {
	m := fooMethodBarEvent()
	m.ABI.GetMethod("foo", -1).Name = "notafoo"
	err := Comply(m, &Standard{Manifest: *fooMethodBarEvent()})
	require.ErrorIs(t, err, ErrMethodMissing)
}

func TestComplyInvalidReturnType(t *testing.T) {
	m := fooMethodBarEvent()
	m.ABI.GetMethod("foo", -1).ReturnType = smartcontract.VoidType
	err := Comply(m, &Standard{Manifest: *fooMethodBarEvent()})
	require.ErrorIs(t, err, ErrInvalidReturnType)
}

func TestComplyMethodParameterType(t *testing.T) {
	m := fooMethodBarEvent()
	m.ABI.GetMethod("foo", -1).Parameters[1].Type = smartcontract.BoolType
	err := Comply(m, &Standard{Manifest: *fooMethodBarEvent()})
	require.ErrorIs(t, err, ErrInvalidParameterType)
}

func TestComplySafeFlag(t *testing.T) {
	m := fooMethodBarEvent()
	m.ABI.GetMethod("foo", -1).Safe = false
	err := Comply(m, &Standard{Manifest: *fooMethodBarEvent()})
	require.ErrorIs(t, err, ErrSafeMethodMismatch)
}

func TestComplyMissingEvent(t *testing.T) {
	m := fooMethodBarEvent()
	m.ABI.GetEvent("bar").Name = "notabar"
	err := Comply(m, &Standard{Manifest: *fooMethodBarEvent()})
	require.ErrorIs(t, err, ErrEventMissing)
}

func TestComplyEventParameterCount(t *testing.T) {
	m := fooMethodBarEvent()
	ev := m.ABI.GetEvent("bar")
	ev.Parameters = ev.Parameters[:0]
	err := Comply(m, &Standard{Manifest: *fooMethodBarEvent()})
	require.ErrorIs(t, err, ErrInvalidParameterCount)
}

func TestComplyEventParameterType(t *testing.T) {
	m := fooMethodBarEvent()
	m.ABI.GetEvent("bar").Parameters[0].Type = smartcontract.BoolType
	err := Comply(m, &Standard{Manifest: *fooMethodBarEvent()})
	require.ErrorIs(t, err, ErrInvalidParameterType)
}

func TestComplyValid(t *testing.T) {
	m := fooMethodBarEvent()
	m.ABI.Methods = append(m.ABI.Methods, manifest.Method{
		Name:       "newMethod",
		Parameters: []manifest.Parameter{{Type: smartcontract.BytesType}},
		ReturnType: smartcontract.StringType,
	})
	m.ABI.Events = append(m.ABI.Events, manifest.Event{
		Name:       "otherEvent",
		Parameters: []manifest.Parameter{{Type: smartcontract.BytesType}},
	})
	require.NoError(t, Comply(m, &Standard{Manifest: *fooMethodBarEvent()}))
}

func TestCheck(t *testing.T) {
	m := manifest.NewManifest("Test")
	require.Error(t, Check(m, manifest.ERC20StandardName))
	require.NoError(t, Check(m, "unknown"))

	m.ABI.Methods = slices.Concat(ERC20.ABI.Methods, TokenBase.ABI.Methods)
	m.ABI.Events = slices.Clone(ERC20.ABI.Events)
	m.SupportedStandards = []string{manifest.ERC20StandardName}
	require.NoError(t, CheckSupported(m))
	require.Error(t, Check(m, manifest.ERC721StandardName))
}

func TestOptionalMethod(t *testing.T) {
	m := manifest.NewManifest("Test")
	m.ABI.Methods = slices.Concat(ERC721.ABI.Methods, TokenBase.ABI.Methods)
	m.ABI.Events = slices.Clone(ERC721.ABI.Events)
	require.NoError(t, Check(m, manifest.ERC721StandardName))

	m.ABI.Methods = append(m.ABI.Methods, manifest.Method{
		Name:       "totalSupply",
		Parameters: []manifest.Parameter{},
		ReturnType: smartcontract.StringType,
		Safe:       true,
	})
	require.ErrorIs(t, Check(m, manifest.ERC721StandardName), ErrInvalidReturnType)
}
