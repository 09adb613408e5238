/*
Package unwrap provides a set of proxy methods to process invocation results.

Functions implemented there are intended to be used as wrappers for other
functions that return (*result.Invoke, error) pair. These functions will check
for error, check for VM state, check the number of results, cast them to
appropriate type (if everything is OK) and then return a result or error.
They're mostly useful for contract-specific packages.
*/
package unwrap

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
)

// BigInt expects correct execution (HALT state) with a single stack item
// returned. A big.Int is extracted from this item and returned.
func BigInt(r *result.Invoke, err error) (*big.Int, error) {
	itm, err := Item(r, err)
	if err != nil {
		return nil, err
	}
	return itm.TryInteger()
}

// Uint256 is similar to BigInt, but additionally checks the value to fit into
// unsigned 256-bit integer.
func Uint256(r *result.Invoke, err error) (*uint256.Int, error) {
	itm, err := Item(r, err)
	if err != nil {
		return nil, err
	}
	return stackitem.ToUint256(itm)
}

// Uint8 expects a single integer in [0, 255] range (like token decimals).
func Uint8(r *result.Invoke, err error) (uint8, error) {
	i, err := BigInt(r, err)
	if err != nil {
		return 0, err
	}
	if i.Sign() < 0 || i.Cmp(big.NewInt(255)) > 0 {
		return 0, errors.New("value is out of uint8 range")
	}
	return uint8(i.Uint64()), nil
}

// Bool expects correct execution (HALT state) with a single stack item
// returned. A bool is extracted from this item and returned.
func Bool(r *result.Invoke, err error) (bool, error) {
	itm, err := Item(r, err)
	if err != nil {
		return false, err
	}
	return itm.TryBool()
}

// Bytes expects correct execution (HALT state) with a single stack item
// returned. A slice of bytes is extracted from this item and returned.
func Bytes(r *result.Invoke, err error) ([]byte, error) {
	itm, err := Item(r, err)
	if err != nil {
		return nil, err
	}
	return itm.TryBytes()
}

// UTF8String expects correct execution (HALT state) with a single stack item
// returned. A string is extracted from this item and checked for UTF-8
// correctness, valid strings are then returned.
func UTF8String(r *result.Invoke, err error) (string, error) {
	itm, err := Item(r, err)
	if err != nil {
		return "", err
	}
	return stackitem.ToString(itm)
}

// Address expects correct execution (HALT state) with a single 20-byte
// stack item returned.
func Address(r *result.Invoke, err error) (common.Address, error) {
	itm, err := Item(r, err)
	if err != nil {
		return common.Address{}, err
	}
	return stackitem.ToAddress(itm)
}

// Array expects correct execution (HALT state) with a single array stack item
// returned. This item is returned to the caller.
func Array(r *result.Invoke, err error) ([]stackitem.Item, error) {
	itm, err := Item(r, err)
	if err != nil {
		return nil, err
	}
	arr, ok := itm.Value().([]stackitem.Item)
	if !ok {
		return nil, errors.New("not an array")
	}
	return arr, nil
}

// ArrayOfBigInts checks the result for correct state (HALT) and then extracts
// a slice of integers from the returned stack item.
func ArrayOfBigInts(r *result.Invoke, err error) ([]*big.Int, error) {
	a, err := Array(r, err)
	if err != nil {
		return nil, err
	}
	res := make([]*big.Int, len(a))
	for i := range a {
		bi, err := a[i].TryInteger()
		if err != nil {
			return nil, fmt.Errorf("element %d is not an integer: %w", i, err)
		}
		res[i] = bi
	}
	return res, nil
}

// Nothing expects successful execution, the result stack is ignored.
func Nothing(r *result.Invoke, err error) error {
	return checkResOK(r, err)
}

func checkResOK(r *result.Invoke, err error) error {
	if err != nil {
		return err
	}
	if r.VMState != vmstate.Halt {
		return fmt.Errorf("invocation failed: %s", r.FaultException)
	}
	return nil
}

// Item returns a stack item from the result if execution was successful (HALT
// state) and if it's the only element on the result stack.
func Item(r *result.Invoke, err error) (stackitem.Item, error) {
	err = checkResOK(r, err)
	if err != nil {
		return nil, err
	}
	if len(r.Stack) == 0 {
		return nil, errors.New("result stack is empty")
	}
	if len(r.Stack) > 1 {
		return nil, fmt.Errorf("too many (%d) result items", len(r.Stack))
	}
	return r.Stack[0], nil
}
