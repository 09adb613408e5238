package cmdargs

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/urfave/cli"
)

const (
	// ArrayStartSeparator marks the start of array cli arg.
	ArrayStartSeparator = "["
	// ArrayEndSeparator marks the end of array cli arg.
	ArrayEndSeparator = "]"
)

// ParamsParsingDoc is a documentation for parameters parsing.
const ParamsParsingDoc = `   Arguments always do have regular contract ABI types, either specified
   explicitly or being inferred from the value. To specify the type manually
   use "type:value" syntax where the type is one of the following: 'bool',
   'uint256', 'address', 'bytes32', 'bytes4', 'bytes', 'string' or
   'uint256[]'. Arrays of integers are also supported: use special
   space-separated '[' and ']' symbols around array values to denote array
   bounds.

   Given values are type-checked against given types with the following
   restrictions applied:
    * 'bool' type values are 'true' and 'false'.
    * 'uint256' values are decimal or 0x-prefixed hexadecimal non-negative
      integers fitting into 256 bits.
    * 'address' values are 0x-prefixed hex-encoded 20-bytes long strings.
    * 'bytes32' and 'bytes4' values are hex-encoded 32 and 4 bytes long
      strings.
    * 'bytes' type values are any hex-encoded things.
    * 'string' type values are any valid UTF-8 strings. In the value's part of
      the string the colon looses it's special meaning as a separator between
      type and value and is taken literally.
    * 'uint256[]' values are comma-separated integers.

   If no type is explicitly specified, it is inferred from the value using the
   following logic:
    - anything that can be interpreted as a non-negative decimal integer gets
      a 'uint256' type
    - 'true' and 'false' strings get 'bool' type
    - 0x-prefixed 20 bytes long hex-encoded strings get 'address' type
    - 0x-prefixed 32 and 4 bytes long hex-encoded strings get 'bytes32' and
      'bytes4' types
    - any other valid 0x-prefixed hex-encoded values get 'bytes' type
    - anything else is a 'string'

   Backslash character is used as an escape character and allows to use colon in
   an implicitly typed string. For any other characters it has no special
   meaning, to get a literal backslash in the string use the '\\' sequence.

   Examples:
    * 'uint256:42' is an integer with a value of 42
    * '42' is an integer with a value of 42
    * 'bad' is a string with a value of 'bad'
    * '0xdead' is a byte array with a value of 'dead'
    * 'string:0xdead' is a string with a value of '0xdead'
    * '0xcd3b766ccdd6ae721141f452c550ca635964ce71' is an address
    * 'string\:string' is a string with a value of 'string:string'
    * '[ 1 2 3 ]' is an array of three integers
    * '[ ]' is an empty array`

// GetParamsFromContext returns parameters parsed from context args starting
// from the specified offset.
func GetParamsFromContext(ctx *cli.Context, offset int) ([]any, *cli.ExitError) {
	args := ctx.Args()
	if len(args) <= offset {
		return nil, nil
	}
	_, params, err := ParseParams(args[offset:], true)
	if err != nil {
		return nil, cli.NewExitError(fmt.Errorf("unable to parse arguments: %w", err), 1)
	}
	res := make([]any, len(params))
	for i := range params {
		res[i] = params[i]
	}
	return res, nil
}

// EnsureNone returns an error if there are any positional arguments present.
// It can be used to check for them in commands that don't accept arguments.
func EnsureNone(ctx *cli.Context) *cli.ExitError {
	if ctx.Args().Present() {
		return cli.NewExitError("additional arguments given while this command expects none", 1)
	}
	return nil
}

// ParseParams extracts array of smartcontract.Parameter from the given args and
// returns the number of handled words, the array itself and an error.
// `calledFromMain` denotes whether the method was called from the outside or
// recursively and used to check if ArrayEndSeparator is allowed to be in
// `args` sequence.
func ParseParams(args []string, calledFromMain bool) (int, []smartcontract.Parameter, error) {
	res := []smartcontract.Parameter{}
	for k := 0; k < len(args); {
		s := args[k]
		switch s {
		case ArrayStartSeparator:
			numWordsRead, array, err := ParseParams(args[k+1:], false)
			if err != nil {
				return 0, nil, fmt.Errorf("failed to parse array: %w", err)
			}
			for i := range array {
				if array[i].Type != smartcontract.Uint256Type {
					return 0, nil, fmt.Errorf("failed to parse array: element #%d is %s, only uint256 arrays are supported", i+1, array[i].Type)
				}
			}
			res = append(res, smartcontract.Parameter{
				Type:  smartcontract.Uint256ArrayType,
				Value: array,
			})
			k += 1 + numWordsRead // `1` for opening bracket
		case ArrayEndSeparator:
			if calledFromMain {
				return 0, nil, errors.New("invalid array syntax: missing opening bracket")
			}
			return k + 1, res, nil // `1`to convert index to numWordsRead
		default:
			param, err := smartcontract.NewParameterFromString(s)
			if err != nil {
				return 0, nil, fmt.Errorf("failed to parse argument #%d: %w", k+1, err)
			}
			res = append(res, *param)
			k++
		}
	}
	if calledFromMain {
		return len(args), res, nil
	}
	return 0, []smartcontract.Parameter{}, errors.New("invalid array syntax: missing closing bracket")
}
