package rpcsrv

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/core"
	"github.com/nspcc-dev/pesto-go/pkg/core/block"
	"github.com/nspcc-dev/pesto-go/pkg/core/interop"
	"github.com/nspcc-dev/pesto-go/pkg/core/state"
	"github.com/nspcc-dev/pesto-go/pkg/core/transaction"
	"github.com/nspcc-dev/pesto-go/pkg/io"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/result"
	"github.com/nspcc-dev/pesto-go/pkg/neorpc/rpcevent"
	"github.com/nspcc-dev/pesto-go/pkg/services/rpcsrv/params"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/vm/stackitem"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Ledger abstracts away the Blockchain as used by the RPC server.
	Ledger interface {
		AddBlock(txes ...*transaction.Transaction) (*block.Block, error)
		BlockHeight() uint32
		Call(sender common.Address, addr common.Address, method string, args []stackitem.Item) *state.Execution
		CurrentBlockHash() common.Hash
		GetAppExecResult(h common.Hash) (*state.AppExecResult, error)
		GetBlock(h common.Hash) (*block.Block, error)
		GetConfig() config.Blockchain
		GetContractState(addr common.Address) (*state.Contract, error)
		GetFactories() []*interop.ContractMD
		GetFactory(name string) (*interop.ContractMD, error)
		GetHeaderHash(index uint32) (common.Hash, error)
		GetNonce(addr common.Address) uint64
		GetNotifications(start, end uint32, f core.NotificationFilter, limit int) ([]state.ContainedNotificationEvent, error)
		MineBlocks(n int) (uint32, error)
		SubscribeForBlocks(ch chan *block.Block)
		SubscribeForExecutions(ch chan *state.AppExecResult)
		SubscribeForNotifications(ch chan *state.ContainedNotificationEvent)
		UnsubscribeFromBlocks(ch chan *block.Block)
		UnsubscribeFromExecutions(ch chan *state.AppExecResult)
		UnsubscribeFromNotifications(ch chan *state.ContainedNotificationEvent)
	}

	// Server represents the JSON-RPC 2.0 server.
	Server struct {
		http   []*http.Server
		chain  Ledger
		config config.RPC
		// wsReadLimit represents web-socket message limit for a receiving side.
		wsReadLimit int64
		upgrader    websocket.Upgrader
		userAgent   string
		// nonce identifies this server instance, it's regenerated on restart.
		nonce    uint32
		log      *zap.Logger
		shutdown chan struct{}
		started  *atomic.Bool
		errChan  chan error

		subsLock    sync.RWMutex
		subscribers map[*subscriber]bool

		subsCounterLock  sync.RWMutex
		blockSubs        int
		executionSubs    int
		notificationSubs int

		blockCh        chan *block.Block
		executionCh    chan *state.AppExecResult
		notificationCh chan *state.ContainedNotificationEvent
	}
)

const (
	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2

	// defaultMaxRequestBodyBytes is used when MaxRequestBodyBytes is not set.
	defaultMaxRequestBodyBytes = 5 * 1024 * 1024

	// maxMineBlocks limits the number of blocks produced by one mineblocks call.
	maxMineBlocks = 10000
)

var rpcHandlers = map[string]func(*Server, params.Params) (any, *neorpc.Error){
	"getapplicationlog":  (*Server).getApplicationLog,
	"getbestblockhash":   (*Server).getBestBlockHash,
	"getblock":           (*Server).getBlock,
	"getblockcount":      (*Server).getBlockCount,
	"getblockhash":       (*Server).getBlockHash,
	"getcontractstate":   (*Server).getContractState,
	"getfactories":       (*Server).getFactories,
	"getfactory":         (*Server).getFactory,
	"getnonce":           (*Server).getNonce,
	"getnotifications":   (*Server).getNotifications,
	"getversion":         (*Server).getVersion,
	"invokefunction":     (*Server).invokeFunction,
	"sendrawtransaction": (*Server).sendRawTransaction,
}

// rpcDevHandlers are only available with EnableDevMethods.
var rpcDevHandlers = map[string]func(*Server, params.Params) (any, *neorpc.Error){
	"mineblocks": (*Server).mineBlocks,
}

var rpcWsHandlers = map[string]func(*Server, params.Params, *subscriber) (any, *neorpc.Error){
	"subscribe":   (*Server).subscribe,
	"unsubscribe": (*Server).unsubscribe,
}

var invalidBlockHeightError = func(index int, height int) *neorpc.Error {
	return neorpc.NewRPCError("Invalid block height", fmt.Sprintf("param at index %d should be greater than or equal to 0 and less then or equal to current block height, got: %d", index, height))
}

// New creates a new Server struct. userAgent is reported via getversion.
func New(chain Ledger, conf config.RPC, userAgent string, log *zap.Logger, errChan chan error) *Server {
	var httpServers = make([]*http.Server, len(conf.Addresses))
	for i, addr := range conf.Addresses {
		httpServers[i] = &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: wsWriteLimit,
		}
	}

	if conf.MaxWebSocketClients == 0 {
		conf.MaxWebSocketClients = config.DefaultMaxWebSocketClients
		log.Info("MaxWebSocketClients is not set or wrong, setting default value", zap.Int("MaxWebSocketClients", config.DefaultMaxWebSocketClients))
	}
	if conf.MaxNotifications == 0 {
		conf.MaxNotifications = config.DefaultMaxNotifications
		log.Info("MaxNotifications is not set or wrong, setting default value", zap.Int("MaxNotifications", config.DefaultMaxNotifications))
	}
	if conf.MaxRequestBodyBytes == 0 {
		conf.MaxRequestBodyBytes = defaultMaxRequestBodyBytes
		log.Info("MaxRequestBodyBytes is not set or wrong, setting default value", zap.Int("MaxRequestBodyBytes", defaultMaxRequestBodyBytes))
	}
	var wsOriginChecker func(*http.Request) bool
	if conf.EnableCORSWorkaround {
		wsOriginChecker = func(_ *http.Request) bool { return true }
	}
	instance := uuid.New()
	return &Server{
		http:        httpServers,
		chain:       chain,
		config:      conf,
		wsReadLimit: int64(conf.MaxRequestBodyBytes),
		upgrader:    websocket.Upgrader{CheckOrigin: wsOriginChecker},
		userAgent:   userAgent,
		nonce:       binary.LittleEndian.Uint32(instance[:4]),
		log:         log.With(zap.String("service", "rpc")),
		shutdown:    make(chan struct{}),
		started:     atomic.NewBool(false),
		errChan:     errChan,

		subscribers: make(map[*subscriber]bool),
		// These are NOT buffered to preserve original order of events.
		blockCh:        make(chan *block.Block),
		executionCh:    make(chan *state.AppExecResult),
		notificationCh: make(chan *state.ContainedNotificationEvent),
	}
}

// Name returns service name.
func (s *Server) Name() string {
	return "rpc"
}

// Addresses returns the list of addresses the server is bound to. After
// Start they're the actual listening addresses (with ports resolved).
func (s *Server) Addresses() []string {
	res := make([]string, len(s.http))
	for i, srv := range s.http {
		res[i] = srv.Addr
	}
	return res
}

// Start creates a new JSON-RPC server listening on the configured addresses.
// It creates goroutines needed internally and it returns its errors via
// errChan passed to New(). The Server only starts once, subsequent calls to
// Start are no-op.
func (s *Server) Start() {
	if !s.config.Enabled {
		s.log.Info("RPC server is not enabled")
		return
	}
	if !s.started.CompareAndSwap(false, true) {
		s.log.Info("RPC server already started")
		return
	}

	go s.handleSubEvents()
	for _, srv := range s.http {
		srv.Handler = http.HandlerFunc(s.handleHTTPRequest)
		s.log.Info("starting rpc-server", zap.String("endpoint", srv.Addr))

		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			s.errChan <- fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			return
		}
		srv.Addr = ln.Addr().String() // set Addr to the actual address
		go func(server *http.Server) {
			err := server.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("failed to start RPC server", zap.Error(err))
				s.errChan <- err
			}
		}(srv)
	}
}

// Shutdown stops the RPC server if it's running. It can only be called once,
// subsequent calls to Shutdown on the same instance are no-op. The instance
// that was stopped can not be started again by calling Start (use a new
// instance if needed).
func (s *Server) Shutdown() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	// Signal to websocket writer routines and handleSubEvents.
	close(s.shutdown)

	for _, srv := range s.http {
		s.log.Info("shutting down RPC server", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			s.log.Warn("error during RPC (http) server shutdown", zap.Error(err))
		}
	}

	// Wait for handleSubEvents to finish.
	<-s.executionCh
}

func (s *Server) handleHTTPRequest(w http.ResponseWriter, httpRequest *http.Request) {
	req := params.NewRequest()

	if httpRequest.URL.Path == "/ws" && httpRequest.Method == http.MethodGet {
		// Technically there is a race between this check and
		// s.subscribers modification below, but it's tiny
		// and not really critical to bother with it. Some additional
		// clients may sneak in, no big deal.
		s.subsLock.RLock()
		numOfSubs := len(s.subscribers)
		s.subsLock.RUnlock()
		if numOfSubs >= s.config.MaxWebSocketClients {
			s.writeHTTPErrorResponse(
				params.NewIn(),
				w,
				neorpc.NewInternalServerError("websocket users limit reached"),
			)
			return
		}
		ws, err := s.upgrader.Upgrade(w, httpRequest, nil)
		if err != nil {
			s.log.Info("websocket connection upgrade failed", zap.Error(err))
			return
		}
		resChan := make(chan abstractResult) // response.abstract or response.abstractBatch
		subChan := make(chan *websocket.PreparedMessage, notificationBufSize)
		subscr := &subscriber{writer: subChan}
		s.subsLock.Lock()
		s.subscribers[subscr] = true
		s.subsLock.Unlock()
		go s.handleWsWrites(ws, resChan, subChan)
		s.handleWsReads(ws, resChan, subscr)
		return
	}

	if httpRequest.Method == http.MethodOptions && s.config.EnableCORSWorkaround { // Preflight CORS.
		setCORSOriginHeaders(w.Header())
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST") // GET for websockets.
		w.Header().Set("Access-Control-Max-Age", "21600")           // 6 hours.
		return
	}

	if httpRequest.Method != http.MethodPost {
		s.writeHTTPErrorResponse(
			params.NewIn(),
			w,
			neorpc.NewInvalidParamsError(fmt.Sprintf("invalid method '%s', please retry with 'POST'", httpRequest.Method)),
		)
		return
	}

	httpRequest.Body = http.MaxBytesReader(w, httpRequest.Body, int64(s.config.MaxRequestBodyBytes))
	err := req.DecodeData(httpRequest.Body)
	if err != nil {
		s.writeHTTPErrorResponse(params.NewIn(), w, neorpc.NewParseError(err.Error()))
		return
	}

	resp := s.handleRequest(req, nil)
	s.writeHTTPServerResponse(req, w, resp)
}

func (s *Server) handleRequest(req *params.Request, sub *subscriber) abstractResult {
	if req.In != nil {
		req.In.Method = escapeForLog(req.In.Method) // No valid method name will be changed by it.
		return s.handleIn(req.In, sub)
	}
	resp := make(abstractBatch, len(req.Batch))
	for i, in := range req.Batch {
		in.Method = escapeForLog(in.Method) // No valid method name will be changed by it.
		resp[i] = s.handleIn(&in, sub)
	}
	return resp
}

func (s *Server) handleIn(req *params.In, sub *subscriber) abstract {
	var res any
	var resErr *neorpc.Error
	if req.JSONRPC != neorpc.JSONRPCVersion {
		return s.packResponse(req, nil, neorpc.NewInvalidParamsError(fmt.Sprintf("problem parsing JSON: invalid version, expected 2.0 got '%s'", req.JSONRPC)))
	}

	reqParams := params.Params(req.RawParams)

	s.log.Debug("processing rpc request",
		zap.String("method", req.Method),
		zap.Stringer("params", reqParams))

	start := time.Now()
	defer func() { addReqTimeMetric(req.Method, time.Since(start)) }()

	resErr = neorpc.NewMethodNotFoundError(fmt.Sprintf("method %q not supported", req.Method))
	if handler, ok := rpcHandlers[req.Method]; ok {
		res, resErr = handler(s, reqParams)
	} else if handler, ok := rpcDevHandlers[req.Method]; ok && s.config.EnableDevMethods {
		res, resErr = handler(s, reqParams)
	} else if handler, ok := rpcWsHandlers[req.Method]; ok && sub != nil {
		res, resErr = handler(s, reqParams, sub)
	}
	return s.packResponse(req, res, resErr)
}

func (s *Server) handleWsWrites(ws *websocket.Conn, resChan <-chan abstractResult, subChan <-chan *websocket.PreparedMessage) {
	pingTicker := time.NewTicker(wsPingPeriod)
eventloop:
	for {
		select {
		case <-s.shutdown:
			break eventloop
		case event, ok := <-subChan:
			if !ok {
				break eventloop
			}
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WritePreparedMessage(event); err != nil {
				break eventloop
			}
		case res, ok := <-resChan:
			if !ok {
				break eventloop
			}
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WriteJSON(res); err != nil {
				break eventloop
			}
		case <-pingTicker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				break eventloop
			}
		}
	}
	ws.Close()
	pingTicker.Stop()
	// Drain notification channel as there might be some goroutines blocked
	// on it.
drainloop:
	for {
		select {
		case _, ok := <-subChan:
			if !ok {
				break drainloop
			}
		default:
			break drainloop
		}
	}
}

func (s *Server) handleWsReads(ws *websocket.Conn, resChan chan<- abstractResult, subscr *subscriber) {
	ws.SetReadLimit(s.wsReadLimit)
	err := ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(wsPongLimit)) })
requestloop:
	for err == nil {
		req := params.NewRequest()
		err := ws.ReadJSON(req)
		if err != nil {
			break
		}
		res := s.handleRequest(req, subscr)
		res.RunForErrors(func(jsonErr *neorpc.Error) {
			s.logRequestError(req, jsonErr)
		})
		select {
		case <-s.shutdown:
			break requestloop
		case resChan <- res:
		}
	}

	s.subsLock.Lock()
	delete(s.subscribers, subscr)
	s.subsLock.Unlock()
	s.subsCounterLock.Lock()
	for _, e := range subscr.feeds {
		if e.event != neorpc.InvalidEventID {
			s.unsubscribeFromChannel(e.event)
		}
	}
	s.subsCounterLock.Unlock()
	close(resChan)
	ws.Close()
}

func (s *Server) getBestBlockHash(_ params.Params) (any, *neorpc.Error) {
	return s.chain.CurrentBlockHash(), nil
}

func (s *Server) getBlockCount(_ params.Params) (any, *neorpc.Error) {
	return s.chain.BlockHeight() + 1, nil
}

func (s *Server) getBlockHash(reqParams params.Params) (any, *neorpc.Error) {
	num, respErr := s.blockHeightFromParam(reqParams.Value(0))
	if respErr != nil {
		return nil, respErr
	}
	h, err := s.chain.GetHeaderHash(num)
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknownBlock, err.Error())
	}
	return h, nil
}

// blockHashFromParam accepts either a block hash or a block index.
func (s *Server) blockHashFromParam(param *params.Param) (common.Hash, *neorpc.Error) {
	if param == nil {
		return common.Hash{}, neorpc.ErrInvalidParams
	}
	if _, err := param.GetIntStrict(); err == nil {
		num, respErr := s.blockHeightFromParam(param)
		if respErr != nil {
			return common.Hash{}, respErr
		}
		h, err := s.chain.GetHeaderHash(num)
		if err != nil {
			return common.Hash{}, neorpc.WrapErrorWithData(neorpc.ErrUnknownBlock, err.Error())
		}
		return h, nil
	}
	h, err := param.GetHash()
	if err != nil {
		return common.Hash{}, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
	}
	return h, nil
}

func (s *Server) fillBlockMetadata(b *block.Block, size int) result.BlockMetadata {
	res := result.BlockMetadata{
		Size:          size,
		Confirmations: s.chain.BlockHeight() - b.Index + 1,
	}
	if b.Index < s.chain.BlockHeight() {
		h, err := s.chain.GetHeaderHash(b.Index + 1)
		if err == nil {
			res.NextBlockHash = &h
		}
	}
	return res
}

func (s *Server) getBlock(reqParams params.Params) (any, *neorpc.Error) {
	hash, respErr := s.blockHashFromParam(reqParams.Value(0))
	if respErr != nil {
		return nil, respErr
	}

	b, err := s.chain.GetBlock(hash)
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknownBlock, err.Error())
	}
	raw, err := io.ToByteArray(b)
	if err != nil {
		return nil, neorpc.NewInternalServerError(fmt.Sprintf("failed to encode block: %s", err))
	}

	if v, _ := reqParams.Value(1).GetBoolean(); v {
		return result.Block{
			Block:         *b,
			BlockMetadata: s.fillBlockMetadata(b, len(raw)),
		}, nil
	}
	return hexutil.Encode(raw), nil
}

func (s *Server) getVersion(_ params.Params) (any, *neorpc.Error) {
	cfg := s.chain.GetConfig()
	return &result.Version{
		Nonce:     s.nonce,
		UserAgent: s.userAgent,
		Protocol: result.Protocol{
			Network:                 cfg.Magic,
			ChainID:                 cfg.ChainID,
			MaxTransactionsPerBlock: cfg.MaxTransactionsPerBlock,
			DevAccountsSeed:         cfg.DevAccounts.Seed,
			DevAccountsCount:        cfg.DevAccounts.Count,
		},
		RPC: result.RPC{
			MaxNotifications: s.config.MaxNotifications,
			DevMethods:       s.config.EnableDevMethods,
		},
	}, nil
}

func newFactory(md *interop.ContractMD) result.Factory {
	return result.Factory{
		Name:     md.Name,
		Manifest: md.Manifest,
	}
}

func (s *Server) getFactories(_ params.Params) (any, *neorpc.Error) {
	mds := s.chain.GetFactories()
	res := make([]result.Factory, 0, len(mds))
	for _, md := range mds {
		res = append(res, newFactory(md))
	}
	return res, nil
}

func (s *Server) getFactory(reqParams params.Params) (any, *neorpc.Error) {
	name, err := reqParams.Value(0).GetStringStrict()
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
	}
	md, err := s.chain.GetFactory(name)
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknownFactory, err.Error())
	}
	return newFactory(md), nil
}

func (s *Server) getContractState(reqParams params.Params) (any, *neorpc.Error) {
	addr, err := reqParams.Value(0).GetAddress()
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
	}
	cs, err := s.chain.GetContractState(addr)
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknownContract, err.Error())
	}
	return cs, nil
}

func (s *Server) getNonce(reqParams params.Params) (any, *neorpc.Error) {
	addr, err := reqParams.Value(0).GetAddress()
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
	}
	return s.chain.GetNonce(addr), nil
}

func (s *Server) getApplicationLog(reqParams params.Params) (any, *neorpc.Error) {
	hash, err := reqParams.Value(0).GetHash()
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
	}
	appExecResult, err := s.chain.GetAppExecResult(hash)
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknownTransaction, err.Error())
	}
	return appExecResult, nil
}

// invokeFunction implements the `invokefunction` RPC call: contract address,
// method, parameters list and an optional sender address.
func (s *Server) invokeFunction(reqParams params.Params) (any, *neorpc.Error) {
	if len(reqParams) < 2 {
		return nil, neorpc.ErrInvalidParams
	}
	addr, err := reqParams.Value(0).GetAddress()
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("contract: %s", err))
	}
	method, err := reqParams.Value(1).GetStringStrict()
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("method: %s", err))
	}
	var args []stackitem.Item
	if p := reqParams.Value(2); p != nil && !p.IsNull() {
		fps, err := p.GetFuncParams()
		if err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
		}
		args, err = smartcontract.ToStackItems(fps)
		if err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
		}
	}
	var sender common.Address
	if p := reqParams.Value(3); p != nil && !p.IsNull() {
		sender, err = p.GetAddress()
		if err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("sender: %s", err))
		}
	}
	return &result.Invoke{Execution: *s.chain.Call(sender, addr, method, args)}, nil
}

// getNotifications implements the `getnotifications` RPC call. It accepts an
// optional block range (with the limit) and an optional notification filter.
func (s *Server) getNotifications(reqParams params.Params) (any, *neorpc.Error) {
	var (
		rng    neorpc.NotificationsRange
		filter core.NotificationFilter
		start  uint32
		end    = s.chain.BlockHeight()
		limit  = s.config.MaxNotifications
	)
	if p := reqParams.Value(0); p != nil && !p.IsNull() {
		if err := json.Unmarshal(p.RawMessage, &rng); err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("range: %s", err))
		}
	}
	if p := reqParams.Value(1); p != nil && !p.IsNull() {
		f, err := p.GetNotificationFilter()
		if err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("filter: %s", err))
		}
		if err := f.IsValid(); err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
		}
		filter.Contract = f.Contract
		if f.Name != nil {
			filter.Name = *f.Name
		}
	}
	if rng.Start != nil {
		start = *rng.Start
	}
	if rng.End != nil {
		end = *rng.End
	}
	if start > end {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, "start index is greater than end")
	}
	if start > s.chain.BlockHeight() {
		return nil, invalidBlockHeightError(0, int(start))
	}
	if rng.Limit != nil {
		if *rng.Limit <= 0 {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, "limit should be positive")
		}
		limit = min(*rng.Limit, limit)
	}
	ntfs, err := s.chain.GetNotifications(start, end, filter, limit)
	if err != nil {
		return nil, neorpc.NewInternalServerError(err.Error())
	}
	if ntfs == nil {
		ntfs = []state.ContainedNotificationEvent{}
	}
	return &result.Notifications{
		Notifications: ntfs,
		Truncated:     len(ntfs) == limit,
	}, nil
}

// sendRawTransaction seals the transaction into a new block.
func (s *Server) sendRawTransaction(reqParams params.Params) (any, *neorpc.Error) {
	if len(reqParams) < 1 {
		return nil, neorpc.NewInvalidParamsError("not enough parameters")
	}
	byteTx, err := reqParams.Value(0).GetBytesHex()
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("not hex: %s", err))
	}
	tx, err := transaction.NewTransactionFromBytes(byteTx)
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("can't decode transaction: %s", err))
	}
	_, err = s.chain.AddBlock(tx)
	return getRelayResult(err, tx.Hash())
}

func getRelayResult(err error, hash common.Hash) (any, *neorpc.Error) {
	switch {
	case err == nil:
		return result.RelayResult{
			Hash: hash,
		}, nil
	case errors.Is(err, core.ErrAlreadyExists):
		return nil, neorpc.WrapErrorWithData(neorpc.ErrAlreadyExists, err.Error())
	case errors.Is(err, core.ErrInvalidNonce):
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidNonce, err.Error())
	case errors.Is(err, transaction.ErrInvalidSignature):
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidSignature, err.Error())
	case errors.Is(err, core.ErrInvalidChainID), errors.Is(err, core.ErrInvalidTransaction),
		errors.Is(err, core.ErrTooManyTransactions):
		return nil, neorpc.WrapErrorWithData(neorpc.ErrValidationFailed, err.Error())
	default:
		return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknown, err.Error())
	}
}

func (s *Server) mineBlocks(reqParams params.Params) (any, *neorpc.Error) {
	n := 1
	if p := reqParams.Value(0); p != nil {
		var err error
		n, err = p.GetInt()
		if err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
		}
	}
	if n <= 0 || n > maxMineBlocks {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("number of blocks should be in [1; %d] range", maxMineBlocks))
	}
	height, err := s.chain.MineBlocks(n)
	if err != nil {
		return nil, neorpc.NewInternalServerError(err.Error())
	}
	return height, nil
}

// subscribe handles subscription requests from websocket clients.
func (s *Server) subscribe(reqParams params.Params, sub *subscriber) (any, *neorpc.Error) {
	streamName, err := reqParams.Value(0).GetString()
	if err != nil {
		return nil, neorpc.ErrInvalidParams
	}
	event, err := neorpc.GetEventIDFromString(streamName)
	if err != nil || event == neorpc.MissedEventID {
		return nil, neorpc.ErrInvalidParams
	}
	// Optional filter.
	var filter any
	if p := reqParams.Value(1); p != nil && !p.IsNull() {
		var flt neorpc.SubscriptionFilter
		switch event {
		case neorpc.BlockEventID:
			var f *neorpc.BlockFilter
			f, err = p.GetBlockFilter()
			if err == nil {
				flt, filter = *f, *f
			}
		case neorpc.NotificationEventID:
			var f *neorpc.NotificationFilter
			f, err = p.GetNotificationFilter()
			if err == nil {
				flt, filter = *f, *f
			}
		case neorpc.ExecutionEventID:
			var f *neorpc.ExecutionFilter
			f, err = p.GetExecutionFilter()
			if err == nil {
				flt, filter = *f, *f
			}
		}
		if err == nil {
			err = flt.IsValid()
		}
		if err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
		}
	}

	s.subsLock.Lock()
	var id int
	for ; id < len(sub.feeds); id++ {
		if sub.feeds[id].event == neorpc.InvalidEventID {
			break
		}
	}
	if id == len(sub.feeds) {
		s.subsLock.Unlock()
		return nil, neorpc.NewInternalServerError("maximum number of subscriptions is reached")
	}
	sub.feeds[id].event = event
	sub.feeds[id].filter = filter
	s.subsLock.Unlock()

	s.subsCounterLock.Lock()
	select {
	case <-s.shutdown:
		s.subsCounterLock.Unlock()
		return nil, neorpc.NewInternalServerError("server is shutting down")
	default:
	}
	s.subscribeToChannel(event)
	s.subsCounterLock.Unlock()
	return strconv.FormatInt(int64(id), 10), nil
}

// subscribeToChannel subscribes RPC server to appropriate chain events if
// it's not yet subscribed for them. It's supposed to be called with s.subsCounterLock
// taken by the caller.
func (s *Server) subscribeToChannel(event neorpc.EventID) {
	switch event {
	case neorpc.BlockEventID:
		if s.blockSubs == 0 {
			s.chain.SubscribeForBlocks(s.blockCh)
		}
		s.blockSubs++
	case neorpc.NotificationEventID:
		if s.notificationSubs == 0 {
			s.chain.SubscribeForNotifications(s.notificationCh)
		}
		s.notificationSubs++
	case neorpc.ExecutionEventID:
		if s.executionSubs == 0 {
			s.chain.SubscribeForExecutions(s.executionCh)
		}
		s.executionSubs++
	}
}

// unsubscribe handles unsubscription requests from websocket clients.
func (s *Server) unsubscribe(reqParams params.Params, sub *subscriber) (any, *neorpc.Error) {
	id, err := reqParams.Value(0).GetInt()
	if err != nil || id < 0 {
		return nil, neorpc.ErrInvalidParams
	}
	s.subsLock.Lock()
	if len(sub.feeds) <= id || sub.feeds[id].event == neorpc.InvalidEventID {
		s.subsLock.Unlock()
		return nil, neorpc.ErrInvalidParams
	}
	event := sub.feeds[id].event
	sub.feeds[id].event = neorpc.InvalidEventID
	sub.feeds[id].filter = nil
	s.subsLock.Unlock()

	s.subsCounterLock.Lock()
	s.unsubscribeFromChannel(event)
	s.subsCounterLock.Unlock()
	return true, nil
}

// unsubscribeFromChannel unsubscribes RPC server from appropriate chain events
// if there are no other subscribers for it. It must be called with s.subsCounterLock
// held by the caller.
func (s *Server) unsubscribeFromChannel(event neorpc.EventID) {
	switch event {
	case neorpc.BlockEventID:
		s.blockSubs--
		if s.blockSubs == 0 {
			s.chain.UnsubscribeFromBlocks(s.blockCh)
		}
	case neorpc.NotificationEventID:
		s.notificationSubs--
		if s.notificationSubs == 0 {
			s.chain.UnsubscribeFromNotifications(s.notificationCh)
		}
	case neorpc.ExecutionEventID:
		s.executionSubs--
		if s.executionSubs == 0 {
			s.chain.UnsubscribeFromExecutions(s.executionCh)
		}
	}
}

func (s *Server) handleSubEvents() {
	b, err := json.Marshal(neorpc.Notification{
		JSONRPC: neorpc.JSONRPCVersion,
		Event:   neorpc.MissedEventID,
		Payload: make([]any, 0),
	})
	if err != nil {
		s.log.Error("fatal: failed to marshal overflow event", zap.Error(err))
		return
	}
	overflowMsg, err := websocket.NewPreparedMessage(websocket.TextMessage, b)
	if err != nil {
		s.log.Error("fatal: failed to prepare overflow message", zap.Error(err))
		return
	}
chloop:
	for {
		var resp = neorpc.Notification{
			JSONRPC: neorpc.JSONRPCVersion,
			Payload: make([]any, 1),
		}
		var msg *websocket.PreparedMessage
		select {
		case <-s.shutdown:
			break chloop
		case b := <-s.blockCh:
			resp.Event = neorpc.BlockEventID
			resp.Payload[0] = b
		case execution := <-s.executionCh:
			resp.Event = neorpc.ExecutionEventID
			resp.Payload[0] = execution
		case notification := <-s.notificationCh:
			resp.Event = neorpc.NotificationEventID
			resp.Payload[0] = notification
		}
		s.subsLock.RLock()
	subloop:
		for sub := range s.subscribers {
			if sub.overflown.Load() {
				continue
			}
			for i := range sub.feeds {
				if rpcevent.Matches(sub.feeds[i], &resp) {
					if msg == nil {
						b, err = json.Marshal(resp)
						if err != nil {
							s.log.Error("failed to marshal notification",
								zap.Error(err),
								zap.Stringer("type", resp.Event))
							break subloop
						}
						msg, err = websocket.NewPreparedMessage(websocket.TextMessage, b)
						if err != nil {
							s.log.Error("failed to prepare notification message",
								zap.Error(err),
								zap.Stringer("type", resp.Event))
							break subloop
						}
					}
					select {
					case sub.writer <- msg:
					default:
						sub.overflown.Store(true)
						// MissedEvent is to be delivered eventually.
						go func(sub *subscriber) {
							sub.writer <- overflowMsg
							sub.overflown.Store(false)
						}(sub)
					}
					// The message is sent only once per subscriber.
					break
				}
			}
		}
		s.subsLock.RUnlock()
	}
	// It's important to do it with subsCounterLock held because no subscription routine
	// should be running concurrently to this one. And even if one is to run
	// after unlock, it'll see closed s.shutdown and won't subscribe.
	s.subsCounterLock.Lock()
	// There might be no subscription in reality, but it's not a problem as
	// core.Blockchain allows unsubscribing non-subscribed channels.
	s.chain.UnsubscribeFromBlocks(s.blockCh)
	s.chain.UnsubscribeFromNotifications(s.notificationCh)
	s.chain.UnsubscribeFromExecutions(s.executionCh)
	s.subsCounterLock.Unlock()
drainloop:
	for {
		select {
		case <-s.blockCh:
		case <-s.executionCh:
		case <-s.notificationCh:
		default:
			break drainloop
		}
	}
	// It's not required closing these, but since they're drained already
	// this is safe and it also allows to give a signal to Shutdown routine.
	close(s.blockCh)
	close(s.notificationCh)
	close(s.executionCh)
}

func (s *Server) blockHeightFromParam(param *params.Param) (uint32, *neorpc.Error) {
	num, err := param.GetInt()
	if err != nil {
		return 0, neorpc.ErrInvalidParams
	}

	if num < 0 || int64(num) > int64(s.chain.BlockHeight()) {
		return 0, invalidBlockHeightError(0, num)
	}
	return uint32(num), nil
}

func (s *Server) packResponse(r *params.In, result any, respErr *neorpc.Error) abstract {
	resp := abstract{
		Header: neorpc.Header{
			JSONRPC: r.JSONRPC,
			ID:      r.RawID,
		},
	}
	if respErr != nil {
		resp.Error = respErr
	} else {
		resp.Result = result
	}
	return resp
}

// logRequestError is a request error logger.
func (s *Server) logRequestError(r *params.Request, jsonErr *neorpc.Error) {
	logFields := []zap.Field{
		zap.Int64("code", jsonErr.Code),
	}
	if len(jsonErr.Data) != 0 {
		logFields = append(logFields, zap.String("cause", jsonErr.Data))
	}

	if r.In != nil {
		logFields = append(logFields, zap.String("method", r.In.Method))
		params := params.Params(r.In.RawParams)
		logFields = append(logFields, zap.Any("params", params))
	}

	logText := "Error encountered with rpc request"
	switch jsonErr.Code {
	case neorpc.InternalServerErrorCode:
		s.log.Error(logText, logFields...)
	default:
		s.log.Info(logText, logFields...)
	}
}

// writeHTTPErrorResponse writes an error response to the ResponseWriter.
func (s *Server) writeHTTPErrorResponse(r *params.In, w http.ResponseWriter, jsonErr *neorpc.Error) {
	resp := s.packResponse(r, nil, jsonErr)
	s.writeHTTPServerResponse(&params.Request{In: r}, w, resp)
}

func setCORSOriginHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Access-Control-Allow-Headers, Authorization, X-Requested-With")
}

func (s *Server) writeHTTPServerResponse(r *params.Request, w http.ResponseWriter, resp abstractResult) {
	// Errors can happen in many places and we can only catch ALL of them here.
	resp.RunForErrors(func(jsonErr *neorpc.Error) {
		s.logRequestError(r, jsonErr)
	})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if s.config.EnableCORSWorkaround {
		setCORSOriginHeaders(w.Header())
	}
	if r.In != nil {
		resp := resp.(abstract)
		if resp.Error != nil {
			w.WriteHeader(getHTTPCodeForError(resp.Error))
		}
	}

	encoder := json.NewEncoder(w)
	err := encoder.Encode(resp)

	if err != nil {
		switch {
		case r.In != nil:
			s.log.Error("Error encountered while encoding response",
				zap.String("err", err.Error()),
				zap.String("method", r.In.Method))
		case r.Batch != nil:
			s.log.Error("Error encountered while encoding batch response",
				zap.String("err", err.Error()))
		}
	}
}

func escapeForLog(in string) string {
	return strings.Map(func(c rune) rune {
		if !strconv.IsGraphic(c) {
			return -1
		}
		return c
	}, in)
}
