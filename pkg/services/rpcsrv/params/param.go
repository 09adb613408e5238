package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
)

// Param represents a param either passed to
// the server or to be sent to a server using
// the client.
type Param struct {
	json.RawMessage
	cache any
}

var (
	jsonFalseBytes      = []byte("false")
	jsonTrueBytes       = []byte("true")
	errMissingParameter = errors.New("parameter is missing")
	errNotAString       = errors.New("not a string")
	errNotAnInt         = errors.New("not an integer")
	errNotABool         = errors.New("not a boolean")
	errNotAnArray       = errors.New("not an array")
)

func (p Param) String() string {
	str, _ := p.GetString()
	return str
}

// GetStringStrict returns a string value of the parameter.
func (p *Param) GetStringStrict() (string, error) {
	if p == nil {
		return "", errMissingParameter
	}
	if p.IsNull() {
		return "", errNotAString
	}
	if p.cache == nil {
		var s string
		err := json.Unmarshal(p.RawMessage, &s)
		if err != nil {
			return "", errNotAString
		}
		p.cache = s
	}
	if s, ok := p.cache.(string); ok {
		return s, nil
	}
	return "", errNotAString
}

// GetString returns a string value of the parameter or tries to cast the parameter to a string value.
func (p *Param) GetString() (string, error) {
	if p == nil {
		return "", errMissingParameter
	}
	if p.IsNull() {
		return "", errNotAString
	}
	if p.cache == nil {
		var s string
		err := json.Unmarshal(p.RawMessage, &s)
		if err == nil {
			p.cache = s
		} else {
			var i int64
			err = json.Unmarshal(p.RawMessage, &i)
			if err == nil {
				p.cache = i
			} else {
				var b bool
				err = json.Unmarshal(p.RawMessage, &b)
				if err != nil {
					return "", errNotAString
				}
				p.cache = b
			}
		}
	}
	switch t := p.cache.(type) {
	case string:
		return t, nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", errNotAString
	}
}

// GetBooleanStrict returns boolean value of the parameter.
func (p *Param) GetBooleanStrict() (bool, error) {
	if p == nil {
		return false, errMissingParameter
	}
	if bytes.Equal(p.RawMessage, jsonTrueBytes) {
		p.cache = true
		return true, nil
	}
	if bytes.Equal(p.RawMessage, jsonFalseBytes) {
		p.cache = false
		return false, nil
	}
	return false, errNotABool
}

// GetBoolean returns a boolean value of the parameter or tries to cast the parameter to a bool value.
func (p *Param) GetBoolean() (bool, error) {
	if p == nil {
		return false, errMissingParameter
	}
	if p.IsNull() {
		return false, errNotABool
	}
	if p.cache == nil {
		var b bool
		err := json.Unmarshal(p.RawMessage, &b)
		if err == nil {
			p.cache = b
		} else {
			var s string
			err = json.Unmarshal(p.RawMessage, &s)
			if err == nil {
				p.cache = s
			} else {
				var i int64
				err = json.Unmarshal(p.RawMessage, &i)
				if err != nil {
					return false, errNotABool
				}
				p.cache = i
			}
		}
	}
	switch t := p.cache.(type) {
	case bool:
		return t, nil
	case string:
		return t != "", nil
	case int64:
		return t != 0, nil
	default:
		return false, errNotABool
	}
}

// GetIntStrict returns an int value of the parameter if the parameter is an integer.
func (p *Param) GetIntStrict() (int, error) {
	if p == nil {
		return 0, errMissingParameter
	}
	if p.IsNull() {
		return 0, errNotAnInt
	}
	value, err := p.fillIntCache()
	if err != nil {
		return 0, err
	}
	if i, ok := value.(int64); ok && i == int64(int(i)) {
		return int(i), nil
	}
	return 0, errNotAnInt
}

func (p *Param) fillIntCache() (any, error) {
	if p.cache != nil {
		return p.cache, nil
	}

	// JSON reliably supports numbers up to 53 bits in size.
	var i int64
	err := json.Unmarshal(p.RawMessage, &i)
	if err == nil {
		p.cache = i
		return i, nil
	}

	var s string
	err = json.Unmarshal(p.RawMessage, &s)
	if err == nil {
		p.cache = s
		return s, nil
	}

	var b bool
	err = json.Unmarshal(p.RawMessage, &b)
	if err == nil {
		p.cache = b
		return b, nil
	}
	return nil, errNotAnInt
}

// GetInt returns an int value of the parameter or tries to cast the parameter to an int value.
func (p *Param) GetInt() (int, error) {
	if p == nil {
		return 0, errMissingParameter
	}
	if p.IsNull() {
		return 0, errNotAnInt
	}
	value, err := p.fillIntCache()
	if err != nil {
		return 0, err
	}
	switch t := value.(type) {
	case int64:
		if t == int64(int(t)) {
			return int(t), nil
		}
		return 0, errNotAnInt
	case string:
		return strconv.Atoi(t)
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errNotAnInt
	}
}

// GetUint32 returns an uint32 value of the parameter, it's mostly used for
// block indexes.
func (p *Param) GetUint32() (uint32, error) {
	i, err := p.GetInt()
	if err != nil {
		return 0, err
	}
	if i < 0 || int64(i) > int64(^uint32(0)) {
		return 0, fmt.Errorf("%d doesn't fit into uint32", i)
	}
	return uint32(i), nil
}

// GetBigInt returns a big-integer value of the parameter.
func (p *Param) GetBigInt() (*big.Int, error) {
	if p == nil {
		return nil, errMissingParameter
	}
	if p.IsNull() {
		return nil, errNotAnInt
	}
	value, err := p.fillIntCache()
	if err != nil {
		return nil, err
	}
	switch t := value.(type) {
	case int64:
		return big.NewInt(t), nil
	case string:
		bi, ok := new(big.Int).SetString(t, 0)
		if !ok {
			return nil, errNotAnInt
		}
		return bi, nil
	case bool:
		if t {
			return big.NewInt(1), nil
		}
		return new(big.Int), nil
	default:
		return nil, errNotAnInt
	}
}

// GetArray returns a slice of Params stored in the parameter.
func (p *Param) GetArray() ([]Param, error) {
	if p == nil {
		return nil, errMissingParameter
	}
	if p.IsNull() {
		return nil, errNotAnArray
	}
	if p.cache == nil {
		a := []Param{}
		err := json.Unmarshal(p.RawMessage, &a)
		if err != nil {
			return nil, errNotAnArray
		}
		p.cache = a
	}
	if a, ok := p.cache.([]Param); ok {
		return a, nil
	}
	return nil, errNotAnArray
}

// GetHash returns a 32-byte hash value of the parameter, the "0x" prefix
// is optional.
func (p *Param) GetHash() (common.Hash, error) {
	b, err := p.GetBytesHex()
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash length %d", len(b))
	}
	return common.BytesToHash(b), nil
}

// GetAddress returns an address value of the parameter, the "0x" prefix
// is optional.
func (p *Param) GetAddress() (common.Address, error) {
	s, err := p.GetStringStrict()
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// GetBytesHex returns a []byte value of the parameter if
// it is a hex-encoded string.
func (p *Param) GetBytesHex() ([]byte, error) {
	s, err := p.GetStringStrict()
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// GetFuncParams returns the current parameter as a list of contract call
// parameters.
func (p *Param) GetFuncParams() ([]smartcontract.Parameter, error) {
	if p == nil {
		return nil, errMissingParameter
	}
	// This one doesn't need to be cached, it's used only once.
	var fp []smartcontract.Parameter
	err := json.Unmarshal(p.RawMessage, &fp)
	if err != nil {
		return nil, fmt.Errorf("not a parameter list: %w", err)
	}
	return fp, nil
}

// GetBlockFilter returns a block subscription filter from the parameter.
func (p *Param) GetBlockFilter() (*neorpc.BlockFilter, error) {
	f := new(neorpc.BlockFilter)
	if err := p.unmarshalStrict(f); err != nil {
		return nil, err
	}
	return f, nil
}

// GetNotificationFilter returns a notification filter from the parameter.
func (p *Param) GetNotificationFilter() (*neorpc.NotificationFilter, error) {
	f := new(neorpc.NotificationFilter)
	if err := p.unmarshalStrict(f); err != nil {
		return nil, err
	}
	return f, nil
}

// GetExecutionFilter returns an execution subscription filter from the
// parameter.
func (p *Param) GetExecutionFilter() (*neorpc.ExecutionFilter, error) {
	f := new(neorpc.ExecutionFilter)
	if err := p.unmarshalStrict(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (p *Param) unmarshalStrict(v any) error {
	if p == nil {
		return errMissingParameter
	}
	jd := json.NewDecoder(bytes.NewReader(p.RawMessage))
	jd.DisallowUnknownFields()
	return jd.Decode(v)
}

// IsNull returns whether the parameter represents JSON nil value.
func (p *Param) IsNull() bool {
	return string(p.RawMessage) == "null"
}
