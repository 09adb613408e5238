package transaction

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/nspcc-dev/pesto-go/pkg/io"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
)

const (
	// MaxTransactionSize is the upper limit size in bytes that a transaction can reach.
	MaxTransactionSize = 102400
	// MaxArguments is the maximum number of call arguments.
	MaxArguments = 64
	// MaxNameLength is the maximum length of a method or factory name.
	MaxNameLength = 64
	// SignatureLength is the length of [R || S || V] signature.
	SignatureLength = crypto.SignatureLength
)

// ErrInvalidSignature is returned when the signature doesn't match the sender.
var ErrInvalidSignature = errors.New("invalid signature")

// Transaction is a signed request to deploy or call a contract.
type Transaction struct {
	// ChainID protects against replays on other networks.
	ChainID uint64
	// Nonce is the sequence number of sender transactions.
	Nonce uint64
	// Sender is the account paying for and authorizing this transaction.
	Sender common.Address
	// Kind defines transaction action.
	Kind Kind
	// Factory is the name of contract factory to deploy (DeployKind only).
	Factory string
	// Contract is the address of called contract (InvokeKind only).
	Contract common.Address
	// Method is the method to call (InvokeKind only).
	Method string
	// Args are constructor or method arguments.
	Args []stackitem.Item
	// Signature is the sender signature over Hash().
	Signature []byte

	hash   common.Hash
	hashed bool
	size   int
}

// NewDeployTX creates an unsigned deployment transaction.
func NewDeployTX(factory string, args []stackitem.Item) *Transaction {
	return &Transaction{
		Kind:    DeployKind,
		Factory: factory,
		Args:    args,
	}
}

// NewInvokeTX creates an unsigned invocation transaction.
func NewInvokeTX(contract common.Address, method string, args []stackitem.Item) *Transaction {
	return &Transaction{
		Kind:     InvokeKind,
		Contract: contract,
		Method:   method,
		Args:     args,
	}
}

// NewTransactionFromBytes decodes byte array into *Transaction.
func NewTransactionFromBytes(b []byte) (*Transaction, error) {
	tx := &Transaction{}
	r := io.NewBinReaderFromBuf(b)
	tx.DecodeBinary(r)
	if r.Err != nil {
		return nil, r.Err
	}
	_ = r.ReadB()
	if r.Err == nil {
		return nil, errors.New("additional data after the transaction")
	}
	tx.size = len(b)
	return tx, nil
}

// Hash returns the hash of the transaction unsigned part.
func (t *Transaction) Hash() common.Hash {
	if !t.hashed {
		t.hash = t.computeHash()
		t.hashed = true
	}
	return t.hash
}

func (t *Transaction) computeHash() common.Hash {
	buf := io.NewBufBinWriter()
	t.encodeHashableFields(buf.BinWriter)
	if buf.Err != nil {
		panic(buf.Err)
	}
	return crypto.Keccak256Hash(buf.Bytes())
}

// Invalidate resets cached hash and size, it must be called after any
// modification of the hashable fields.
func (t *Transaction) Invalidate() {
	t.hashed = false
	t.size = 0
}

// Size returns the size of the serialized transaction.
func (t *Transaction) Size() int {
	if t.size == 0 {
		t.size = len(t.Bytes())
	}
	return t.size
}

// Bytes converts the transaction to []byte.
func (t *Transaction) Bytes() []byte {
	buf := io.NewBufBinWriter()
	t.EncodeBinary(buf.BinWriter)
	if buf.Err != nil {
		return nil
	}
	return buf.Bytes()
}

// DecodeBinary implements the io.Serializable interface.
func (t *Transaction) DecodeBinary(r *io.BinReader) {
	t.decodeHashableFields(r)
	t.Signature = r.ReadVarBytes(SignatureLength)
	if r.Err == nil && len(t.Signature) != 0 && len(t.Signature) != SignatureLength {
		r.Err = fmt.Errorf("invalid signature length %d", len(t.Signature))
	}
	t.Invalidate()
}

func (t *Transaction) decodeHashableFields(r *io.BinReader) {
	t.ChainID = r.ReadU64LE()
	t.Nonce = r.ReadU64LE()
	r.ReadBytes(t.Sender[:])
	t.Kind = Kind(r.ReadB())
	switch t.Kind {
	case DeployKind:
		t.Factory = r.ReadString(MaxNameLength)
	case InvokeKind:
		r.ReadBytes(t.Contract[:])
		t.Method = r.ReadString(MaxNameLength)
	default:
		if r.Err == nil {
			r.Err = fmt.Errorf("invalid transaction kind %d", t.Kind)
		}
		return
	}
	n := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if n > MaxArguments {
		r.Err = fmt.Errorf("too many arguments: %d", n)
		return
	}
	t.Args = make([]stackitem.Item, n)
	for i := range t.Args {
		t.Args[i] = stackitem.DecodeBinary(r)
	}
}

// EncodeBinary implements the io.Serializable interface.
func (t *Transaction) EncodeBinary(w *io.BinWriter) {
	t.encodeHashableFields(w)
	w.WriteVarBytes(t.Signature)
}

func (t *Transaction) encodeHashableFields(w *io.BinWriter) {
	w.WriteU64LE(t.ChainID)
	w.WriteU64LE(t.Nonce)
	w.WriteBytes(t.Sender[:])
	w.WriteB(byte(t.Kind))
	switch t.Kind {
	case DeployKind:
		w.WriteString(t.Factory)
	case InvokeKind:
		w.WriteBytes(t.Contract[:])
		w.WriteString(t.Method)
	}
	w.WriteVarUint(uint64(len(t.Args)))
	for i := range t.Args {
		stackitem.EncodeBinary(t.Args[i], w)
	}
}

// VerifySignature checks that the signature is made by the sender.
func (t *Transaction) VerifySignature() error {
	if len(t.Signature) != SignatureLength {
		return fmt.Errorf("%w: bad length %d", ErrInvalidSignature, len(t.Signature))
	}
	pub, err := crypto.SigToPub(t.Hash().Bytes(), t.Signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != t.Sender {
		return fmt.Errorf("%w: signed by another key", ErrInvalidSignature)
	}
	return nil
}

// isValid checks the transaction structure.
func (t *Transaction) isValid() error {
	switch t.Kind {
	case DeployKind:
		if t.Factory == "" {
			return errors.New("empty factory name")
		}
		if len(t.Factory) > MaxNameLength {
			return errors.New("factory name is too long")
		}
	case InvokeKind:
		if t.Method == "" {
			return errors.New("empty method name")
		}
		if len(t.Method) > MaxNameLength {
			return errors.New("method name is too long")
		}
	default:
		return fmt.Errorf("invalid transaction kind %d", t.Kind)
	}
	if len(t.Args) > MaxArguments {
		return fmt.Errorf("too many arguments: %d", len(t.Args))
	}
	if t.Size() > MaxTransactionSize {
		return fmt.Errorf("transaction is too big: %d", t.Size())
	}
	return nil
}

// IsValid checks the transaction structure and signature.
func (t *Transaction) IsValid() error {
	if err := t.isValid(); err != nil {
		return err
	}
	return t.VerifySignature()
}

// transactionJSON is a wrapper for Transaction and used for correct
// marshalling of transaction data.
type transactionJSON struct {
	Hash      common.Hash     `json:"hash"`
	Size      int             `json:"size"`
	ChainID   hexutil.Uint64  `json:"chainid"`
	Nonce     hexutil.Uint64  `json:"nonce"`
	Sender    common.Address  `json:"sender"`
	Kind      Kind            `json:"kind"`
	Factory   string          `json:"factory,omitempty"`
	Contract  *common.Address `json:"contract,omitempty"`
	Method    string          `json:"method,omitempty"`
	Args      json.RawMessage `json:"args"`
	Signature hexutil.Bytes   `json:"signature"`
}

// MarshalJSON implements the json.Marshaler interface.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	args, err := stackitem.ToJSONWithTypes(stackitem.NewArray(t.Args))
	if err != nil {
		return nil, fmt.Errorf("args: %w", err)
	}
	tx := transactionJSON{
		Hash:      t.Hash(),
		Size:      t.Size(),
		ChainID:   hexutil.Uint64(t.ChainID),
		Nonce:     hexutil.Uint64(t.Nonce),
		Sender:    t.Sender,
		Kind:      t.Kind,
		Factory:   t.Factory,
		Method:    t.Method,
		Args:      args,
		Signature: t.Signature,
	}
	if t.Kind == InvokeKind {
		tx.Contract = &t.Contract
	}
	return json.Marshal(tx)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	tx := new(transactionJSON)
	if err := json.Unmarshal(data, tx); err != nil {
		return err
	}
	t.ChainID = uint64(tx.ChainID)
	t.Nonce = uint64(tx.Nonce)
	t.Sender = tx.Sender
	t.Kind = tx.Kind
	t.Factory = tx.Factory
	t.Method = tx.Method
	if tx.Contract != nil {
		t.Contract = *tx.Contract
	}
	t.Signature = tx.Signature
	t.Args = nil
	if len(tx.Args) != 0 {
		item, err := stackitem.FromJSONWithTypes(tx.Args)
		if err != nil {
			return fmt.Errorf("args: %w", err)
		}
		arr, ok := item.(*stackitem.Array)
		if !ok {
			return errors.New("args: array expected")
		}
		t.Args = arr.Value().([]stackitem.Item)
	}
	t.Invalidate()
	if t.Hash() != tx.Hash {
		return errors.New("txid doesn't match transaction hash")
	}
	if err := t.isValid(); err != nil {
		return err
	}
	return nil
}
