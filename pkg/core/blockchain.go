package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/dao"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop/contract"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/storage"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/pesto-go/pkg/vm/vmstate"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	// version is the storage format version, chains stored with other
	// versions can't be resumed.
	version = "0.1.0"

	// GenesisTimestamp is the timestamp of the genesis block.
	GenesisTimestamp = 1672531200000
)

var (
	// ErrInvalidChainID is returned for transactions of other networks.
	ErrInvalidChainID = errors.New("invalid chain id")
	// ErrInvalidNonce is returned for transactions which nonce isn't the
	// next one for the sender.
	ErrInvalidNonce = errors.New("invalid nonce")
	// ErrAlreadyExists is returned for transactions already on chain.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidTransaction is returned for malformed transactions.
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrTooManyTransactions is returned for blocks over the configured limit.
	ErrTooManyTransactions = errors.New("too many transactions")
	// ErrInvalidBlock is returned for restored blocks not matching the chain.
	ErrInvalidBlock = errors.New("invalid block")
)

// Factories is a set of contract implementations available on the chain.
type Factories interface {
	interop.Factories
	List() []*interop.ContractMD
}

// Blockchain is a single-node development chain. Every block is sealed as
// soon as it's requested, so transactions are executed immediately.
type Blockchain struct {
	config    config.Blockchain
	factories Factories
	log       *zap.Logger

	// dao is the persisted chain state, it's only modified under lock.
	dao  *dao.Simple
	lock sync.Mutex

	blockHeight *atomic.Uint32
	topBlock    *atomic.Pointer[block.Block]

	// contracts caches immutable contract states of persisted blocks.
	contracts *lru.Cache

	isRunning *atomic.Bool
	stopCh    chan struct{}
	runToExit chan struct{}
	events    chan bcEvent
	subCh     chan any
	unsubCh   chan any
}

// bcEvent is an internal event generated by the Blockchain and then
// broadcasted to other parties. It joins the new block and associated
// execution results.
type bcEvent struct {
	block          *block.Block
	appExecResults []*state.AppExecResult
}

// NewBlockchain returns a new blockchain object the will use the
// given Store as its underlying storage. The chain is created with the
// genesis block if the store is empty and is resumed from it otherwise.
func NewBlockchain(s storage.Store, cfg config.Blockchain, factories Factories, log *zap.Logger) (*Blockchain, error) {
	if log == nil {
		return nil, errors.New("empty logger")
	}
	if err := cfg.ProtocolConfiguration.Validate(); err != nil {
		return nil, err
	}
	if cfg.ContractCacheSize <= 0 {
		cfg.ContractCacheSize = config.DefaultContractCacheSize
	}
	contracts, err := lru.New(cfg.ContractCacheSize)
	if err != nil {
		return nil, err
	}
	bc := &Blockchain{
		config:      cfg,
		factories:   factories,
		log:         log,
		dao:         dao.NewSimple(s),
		blockHeight: atomic.NewUint32(0),
		topBlock:    atomic.NewPointer[block.Block](nil),
		contracts:   contracts,
		isRunning:   atomic.NewBool(false),
		stopCh:      make(chan struct{}),
		runToExit:   make(chan struct{}),
		events:      make(chan bcEvent, 16),
		subCh:       make(chan any),
		unsubCh:     make(chan any),
	}
	if err := bc.init(); err != nil {
		return nil, err
	}
	return bc, nil
}

func (bc *Blockchain) init() error {
	ver := dao.Version{
		Magic: uint32(bc.config.Magic),
		Value: version,
	}
	_, err := bc.dao.GetVersion()
	if errors.Is(err, storage.ErrKeyNotFound) {
		bc.log.Info("no storage version found! creating genesis block")
		bc.dao.PutVersion(ver)
		genesis := block.New(0, common.Hash{}, GenesisTimestamp, nil)
		if err := bc.storeBlock(bc.dao, genesis, nil); err != nil {
			return err
		}
		if _, err := bc.dao.Persist(); err != nil {
			return fmt.Errorf("can't persist genesis block: %w", err)
		}
		bc.topBlock.Store(genesis)
		updateBlockHeightMetric(0)
		return nil
	}
	if err != nil {
		return fmt.Errorf("can't read storage version: %w", err)
	}
	if err := bc.dao.CheckVersion(ver); err != nil {
		return err
	}

	bc.log.Info("restoring blockchain", zap.String("version", version))
	height, h, err := bc.dao.GetCurrentBlockHeight()
	if err != nil {
		return fmt.Errorf("can't retrieve current block height: %w", err)
	}
	top, err := bc.dao.GetBlock(h)
	if err != nil {
		return fmt.Errorf("can't retrieve current block %s: %w", h, err)
	}
	bc.blockHeight.Store(height)
	bc.topBlock.Store(top)
	updateBlockHeightMetric(height)
	bc.log.Info("chain resumed", zap.Uint32("height", height), zap.Stringer("hash", h))
	return nil
}

// Run runs chain loop, it needs to be run as goroutine and executing it is
// critical for correct Blockchain operation.
func (bc *Blockchain) Run() {
	bc.isRunning.Store(true)
	defer close(bc.runToExit)
	bc.notificationDispatcher()
}

// Close stops Blockchain's internal loop, syncs changes to persistent storage
// and closes it. The Blockchain is no longer functional after the call to
// Close.
func (bc *Blockchain) Close() {
	if bc.isRunning.CompareAndSwap(true, false) {
		close(bc.stopCh)
		<-bc.runToExit
	}
	bc.lock.Lock()
	if _, err := bc.dao.Persist(); err != nil {
		bc.log.Warn("failed to persist", zap.Error(err))
	}
	if err := bc.dao.Store.Close(); err != nil {
		bc.log.Warn("failed to close db", zap.Error(err))
	}
	bc.lock.Unlock()
}

// GetConfig returns the chain configuration.
func (bc *Blockchain) GetConfig() config.Blockchain {
	return bc.config
}

// GetFactories returns metadata of all contract factories known to the chain.
func (bc *Blockchain) GetFactories() []*interop.ContractMD {
	return bc.factories.List()
}

// GetFactory returns metadata of the named contract factory.
func (bc *Blockchain) GetFactory(name string) (*interop.ContractMD, error) {
	c, err := bc.factories.GetFactory(name)
	if err != nil {
		return nil, err
	}
	return c.Metadata(), nil
}

// AddBlock seals a new block with the given transactions on top of the
// chain, an empty list produces an empty block. Transactions are verified
// and executed in order, if any of them is invalid the block is rejected
// and no state is changed. Failed executions don't invalidate the block.
func (bc *Blockchain) AddBlock(txes ...*transaction.Transaction) (*block.Block, error) {
	bc.lock.Lock()
	defer bc.lock.Unlock()

	top := bc.topBlock.Load()
	ts := uint64(time.Now().UnixMilli())
	if ts <= top.Timestamp {
		ts = top.Timestamp + 1
	}
	return bc.addBlock(block.New(top.Index+1, top.Hash(), ts, txes), nil)
}

// RestoreBlock adds a previously dumped block to the chain. Execution is
// deterministic, so the resulting block must have the same hash.
func (bc *Blockchain) RestoreBlock(b *block.Block) error {
	bc.lock.Lock()
	defer bc.lock.Unlock()

	top := bc.topBlock.Load()
	if b.Index != top.Index+1 {
		return fmt.Errorf("%w: expected index %d, got %d", ErrInvalidBlock, top.Index+1, b.Index)
	}
	if b.PrevHash != top.Hash() {
		return fmt.Errorf("%w: previous hash mismatch", ErrInvalidBlock)
	}
	if err := b.Verify(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBlock, err)
	}
	expected := b.Hash()
	nb := block.New(b.Index, b.PrevHash, b.Timestamp, b.Transactions)
	nb.Bloom = b.Bloom
	nb.Invalidate()
	if nb.Hash() != expected {
		return fmt.Errorf("%w: header mismatch", ErrInvalidBlock)
	}
	// Bloom is recalculated during execution.
	nb.Bloom = block.Bloom{}
	nb.Invalidate()
	_, err := bc.addBlock(nb, func(res *block.Block) error {
		if res.Hash() != expected {
			return fmt.Errorf("%w: state mismatch at block %d", ErrInvalidBlock, b.Index)
		}
		return nil
	})
	return err
}

// MineBlocks seals n empty blocks and returns the new height.
func (bc *Blockchain) MineBlocks(n int) (uint32, error) {
	for range n {
		if _, err := bc.AddBlock(); err != nil {
			return bc.BlockHeight(), err
		}
	}
	return bc.BlockHeight(), nil
}

// addBlock executes block transactions and stores the block. The executed
// block is passed to check (if any) before anything is persisted. It must
// be called under lock.
func (bc *Blockchain) addBlock(b *block.Block, check func(*block.Block) error) (*block.Block, error) {
	if len(b.Transactions) > bc.config.MaxTransactionsPerBlock {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyTransactions, len(b.Transactions), bc.config.MaxTransactionsPerBlock)
	}
	var (
		start = time.Now()
		cache = bc.dao.GetWrapped()
		aers  = make([]*state.AppExecResult, 0, len(b.Transactions))
	)
	for _, tx := range b.Transactions {
		if err := bc.verifyTx(cache, tx); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.Hash(), err)
		}
		aer := bc.executeTx(cache, b, tx)
		if aer.VMState == vmstate.Halt {
			for _, ev := range aer.Events {
				b.Bloom.AddNotification(ev.Contract, ev.Name)
			}
		}
		aers = append(aers, aer)
	}
	b.Invalidate()
	if check != nil {
		if err := check(b); err != nil {
			return nil, err
		}
	}
	if err := bc.storeBlock(cache, b, aers); err != nil {
		return nil, err
	}
	if _, err := cache.Persist(); err != nil {
		return nil, fmt.Errorf("can't persist block changes: %w", err)
	}
	if _, err := bc.dao.Persist(); err != nil {
		return nil, fmt.Errorf("can't persist block %d: %w", b.Index, err)
	}
	bc.topBlock.Store(b)
	bc.blockHeight.Store(b.Index)
	updateBlockHeightMetric(b.Index)

	bc.log.Debug("block added",
		zap.Uint32("index", b.Index),
		zap.Stringer("hash", b.Hash()),
		zap.Int("txes", len(b.Transactions)),
		zap.Duration("took", time.Since(start)))
	if bc.isRunning.Load() {
		select {
		case bc.events <- bcEvent{block: b, appExecResults: aers}:
		case <-bc.stopCh:
		}
	}
	return b, nil
}

// storeBlock writes the block and its transactions to d.
func (bc *Blockchain) storeBlock(d *dao.Simple, b *block.Block, aers []*state.AppExecResult) error {
	if err := d.StoreAsBlock(b); err != nil {
		return fmt.Errorf("can't store block %d: %w", b.Index, err)
	}
	for i, tx := range b.Transactions {
		if err := d.StoreAsTransaction(tx, b.Index, aers[i]); err != nil {
			return fmt.Errorf("can't store transaction %s: %w", tx.Hash(), err)
		}
	}
	d.StoreAsCurrentBlock(b)
	return nil
}

// VerifyTx checks the transaction against the current chain state.
func (bc *Blockchain) VerifyTx(tx *transaction.Transaction) error {
	return bc.verifyTx(bc.dao, tx)
}

func (bc *Blockchain) verifyTx(d *dao.Simple, tx *transaction.Transaction) error {
	if tx.ChainID != bc.config.ChainID {
		return fmt.Errorf("%w: %d (expected %d)", ErrInvalidChainID, tx.ChainID, bc.config.ChainID)
	}
	if err := tx.IsValid(); err != nil {
		if errors.Is(err, transaction.ErrInvalidSignature) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}
	if err := d.HasTransaction(tx.Hash()); err != nil {
		return ErrAlreadyExists
	}
	if expected := d.GetNonce(tx.Sender); tx.Nonce != expected {
		return fmt.Errorf("%w: %d (expected %d)", ErrInvalidNonce, tx.Nonce, expected)
	}
	return nil
}

// executeTx runs the transaction on its own storage layer, which is merged
// into d on success only. The sender nonce is consumed either way.
func (bc *Blockchain) executeTx(d *dao.Simple, b *block.Block, tx *transaction.Transaction) *state.AppExecResult {
	txDAO := d.GetWrapped()
	ic := interop.NewContext(txDAO, bc.factories, bc.getContract, b, tx, bc.log)
	res, err := ic.Run(func() stackitem.Item {
		if tx.Kind == transaction.DeployKind {
			return stackitem.Make(contract.Deploy(ic, tx.Factory, tx.Args))
		}
		return contract.Call(ic, tx.Contract, tx.Method, tx.Args...)
	})
	d.PutNonce(tx.Sender, tx.Nonce+1)

	aer := &state.AppExecResult{
		Container:  tx.Hash(),
		BlockIndex: b.Index,
		Execution:  newExecution(ic, res, err),
	}
	txExecuted.Inc()
	if err != nil {
		txFaulted.Inc()
		bc.log.Debug("transaction faulted",
			zap.Stringer("hash", tx.Hash()),
			zap.Error(err))
		return aer
	}
	if _, err := txDAO.Persist(); err != nil {
		panic(fmt.Errorf("can't persist transaction changes: %w", err))
	}
	if tx.Kind == transaction.DeployKind {
		contractsDeployed.Inc()
	}
	return aer
}

func newExecution(ic *interop.Context, res stackitem.Item, err error) state.Execution {
	e := state.Execution{
		GasConsumed: ic.GasConsumed,
		Stack:       []stackitem.Item{},
		Events:      []state.NotificationEvent{},
	}
	if err != nil {
		e.VMState = vmstate.Fault
		e.FaultException = err.Error()
		return e
	}
	e.VMState = vmstate.Halt
	e.Stack = append(e.Stack, res)
	e.Events = ic.Notifications
	return e
}

// Call invokes the contract method on top of the current chain state without
// persisting any changes. Sender is the account the call is made on behalf
// of, it can be zero.
func (bc *Blockchain) Call(sender common.Address, addr common.Address, method string, args []stackitem.Item) *state.Execution {
	tx := transaction.NewInvokeTX(addr, method, args)
	tx.ChainID = bc.config.ChainID
	tx.Sender = sender
	ic := interop.NewContext(bc.dao.GetWrapped(), bc.factories, bc.getContract, bc.topBlock.Load(), tx, bc.log)
	res, err := ic.Run(func() stackitem.Item {
		return contract.Call(ic, addr, method, args...)
	})
	e := newExecution(ic, res, err)
	return &e
}

// getContract returns contract state using the cache for contracts deployed
// in persisted blocks.
func (bc *Blockchain) getContract(d *dao.Simple, addr common.Address) (*state.Contract, error) {
	if cs, ok := bc.contracts.Get(addr); ok {
		return cs.(*state.Contract), nil
	}
	cs, err := d.GetContractState(addr)
	if err != nil {
		return nil, err
	}
	if cs.BlockIndex <= bc.BlockHeight() {
		bc.contracts.Add(addr, cs)
	}
	return cs, nil
}

// GetContractState returns the state of the contract deployed at addr.
func (bc *Blockchain) GetContractState(addr common.Address) (*state.Contract, error) {
	return bc.getContract(bc.dao, addr)
}

// GetContracts returns all deployed contracts.
func (bc *Blockchain) GetContracts() ([]*state.Contract, error) {
	var res []*state.Contract
	err := bc.dao.SeekContracts(func(cs *state.Contract) bool {
		res = append(res, cs)
		return true
	})
	return res, err
}

// GetNonce returns the next nonce of the account.
func (bc *Blockchain) GetNonce(addr common.Address) uint64 {
	return bc.dao.GetNonce(addr)
}

// BlockHeight returns the height of the topmost block.
func (bc *Blockchain) BlockHeight() uint32 {
	return bc.blockHeight.Load()
}

// CurrentBlockHash returns the hash of the topmost block.
func (bc *Blockchain) CurrentBlockHash() common.Hash {
	return bc.topBlock.Load().Hash()
}

// GetHeaderHash returns the hash of the block with the given index.
func (bc *Blockchain) GetHeaderHash(index uint32) (common.Hash, error) {
	return bc.dao.GetBlockHash(index)
}

// GetBlock returns a block by its hash.
func (bc *Blockchain) GetBlock(h common.Hash) (*block.Block, error) {
	if top := bc.topBlock.Load(); top.Hash() == h {
		return top, nil
	}
	return bc.dao.GetBlock(h)
}

// GetHeader returns a block header by its hash.
func (bc *Blockchain) GetHeader(h common.Hash) (*block.Header, error) {
	hdr, _, err := bc.dao.GetHeader(h)
	return hdr, err
}

// GetTransaction returns a transaction and the index of the block including
// it.
func (bc *Blockchain) GetTransaction(h common.Hash) (*transaction.Transaction, uint32, error) {
	return bc.dao.GetTransaction(h)
}

// GetAppExecResult returns the execution result of the transaction.
func (bc *Blockchain) GetAppExecResult(h common.Hash) (*state.AppExecResult, error) {
	return bc.dao.GetAppExecResult(h)
}

// GetStorageItem returns a raw contract storage item, nil if missing.
func (bc *Blockchain) GetStorageItem(addr common.Address, key []byte) []byte {
	return bc.dao.GetStorageItem(addr, key)
}
