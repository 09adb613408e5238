package smartcontract_test

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nspcc-dev/pesto-go/internal/testcli"
	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pesto"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/pestonft"
	"github.com/nspcc-dev/pesto-go/pkg/contracts/staking"
	"github.com/nspcc-dev/pesto-go/pkg/wallet"
	"github.com/stretchr/testify/require"
)

func deploy(t *testing.T, e *testcli.Executor, factory string, args ...string) common.Address {
	e.Run(t, append([]string{"pesto-go", "contract", "deploy", "-r", e.Endpoint, factory}, args...)...)
	e.CheckNextLine(t, "^Deploying contract from: 0x[0-9a-fA-F]{40}$")
	e.CheckNextLine(t, "^Deploying "+factory+" contract...$")
	addr := e.CheckAddress(t, factory+" deployed to: ")
	e.CheckEOF(t)
	return addr
}

func TestContractDeploy(t *testing.T) {
	e := testcli.NewExecutor(t, true)

	t.Run("missing factory", func(t *testing.T) {
		e.RunWithErrorCheck(t, "no contract factory name", "pesto-go", "contract", "deploy", "-r", e.Endpoint)
	})
	t.Run("unknown factory", func(t *testing.T) {
		e.RunWithErrorCheck(t, "Unknown contract factory", "pesto-go", "contract", "deploy", "-r", e.Endpoint, "Unknown")
	})
	t.Run("bad arguments", func(t *testing.T) {
		e.RunWithErrorCheck(t, "unable to parse arguments", "pesto-go", "contract", "deploy", "-r", e.Endpoint, pesto.FactoryName, "[", "1")
	})
	t.Run("bad account", func(t *testing.T) {
		e.RunWithErrorCheck(t, "out of range", "pesto-go", "contract", "deploy", "-r", e.Endpoint, "-a", "1000", pesto.FactoryName)
	})
	t.Run("good", func(t *testing.T) {
		addr := deploy(t, e, pesto.FactoryName)
		cs, err := e.Chain.GetContractState(addr)
		require.NoError(t, err)
		require.NotNil(t, cs)
	})
	t.Run("keystore", func(t *testing.T) {
		acc, err := wallet.NewAccount()
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "key.json")
		require.NoError(t, acc.SaveKeystore(path, "pass", wallet.LightScrypt))

		e.In.WriteString("pass\r")
		e.Run(t, "pesto-go", "contract", "deploy", "-r", e.Endpoint, "-k", path, pestonft.FactoryName)
		e.CheckNextLine(t, "^Deploying contract from: "+acc.Address.Hex()+"$")
		e.CheckNextLine(t, "^Deploying "+pestonft.FactoryName+" contract...$")
		e.CheckAddress(t, pestonft.FactoryName+" deployed to: ")
		e.CheckEOF(t)

		e.In.WriteString("wrong\r")
		e.RunWithError(t, "pesto-go", "contract", "deploy", "-r", e.Endpoint, "-k", path, pestonft.FactoryName)
	})
}

func TestContractDeployInProcess(t *testing.T) {
	e := testcli.NewExecutor(t, false)
	accs, err := wallet.DevAccounts(config.DefaultDevAccountsSeed, 10)
	require.NoError(t, err)

	e.Run(t, "pesto-go", "contract", "deploy", "--config-file", testcli.UnitTestConfig, "-a", "2", pesto.FactoryName)
	e.CheckNextLine(t, "^Deploying contract from: "+accs[2].Address.Hex()+"$")
	e.CheckNextLine(t, "^Deploying "+pesto.FactoryName+" contract...$")
	e.CheckAddress(t, pesto.FactoryName+" deployed to: ")
	e.CheckEOF(t)

	e.RunWithErrorCheck(t, "Unknown contract factory", "pesto-go", "contract", "deploy", "--config-file", testcli.UnitTestConfig, "Unknown")
	e.RunWithError(t, "pesto-go", "contract", "deploy", "--config-file", "./missing.yml", pesto.FactoryName)
}

func TestContractDeployStaking(t *testing.T) {
	e := testcli.NewExecutor(t, true)

	t.Run("missing constructor arguments", func(t *testing.T) {
		e.RunWithError(t, "pesto-go", "contract", "deploy", "-r", e.Endpoint, staking.FactoryName)
	})
	t.Run("defaults", func(t *testing.T) {
		e.Run(t, "pesto-go", "contract", "deploy-staking", "-r", e.Endpoint)
		e.CheckNextLine(t, "^Deploying contract from: ")
		e.CheckNextLine(t, "^Deploying "+staking.FactoryName+" contract...$")
		addr := e.CheckAddress(t, staking.FactoryName+" deployed to: ")
		e.CheckEOF(t)

		e.Run(t, "pesto-go", "contract", "call", "-r", e.Endpoint, addr.Hex(), "rewardRate")
		e.CheckNextLine(t, "^VM state: HALT$")
		e.CheckNextLine(t, "^Gas consumed: [0-9]+$")
		e.CheckNextLine(t, "^Stack:$")
		e.CheckNextLine(t, "^\t"+strconv.FormatUint(config.DefaultDeployments().Staking.Rate, 10)+"$")
	})
	t.Run("overrides", func(t *testing.T) {
		nft := deploy(t, e, pestonft.FactoryName)
		token := deploy(t, e, pesto.FactoryName)
		e.Run(t, "pesto-go", "contract", "deploy-staking", "-r", e.Endpoint,
			"--nft", nft.Hex(), "--token", token.Hex(), "--rate", "7")
		e.CheckNextLine(t, "^Deploying contract from: ")
		e.CheckNextLine(t, "^Deploying "+staking.FactoryName+" contract...$")
		addr := e.CheckAddress(t, staking.FactoryName+" deployed to: ")
		e.CheckEOF(t)

		e.Run(t, "pesto-go", "contract", "call", "-r", e.Endpoint, addr.Hex(), "nft")
		require.Contains(t, strings.ToLower(e.Out.String()), strings.ToLower(strings.TrimPrefix(nft.Hex(), "0x")))
	})
	t.Run("zero rate", func(t *testing.T) {
		e.RunWithErrorCheck(t, "must be positive", "pesto-go", "contract", "deploy-staking", "-r", e.Endpoint, "--rate", "0")
	})
	t.Run("bad address", func(t *testing.T) {
		e.RunUsageError(t, "invalid address", "pesto-go", "contract", "deploy-staking", "-r", e.Endpoint, "--nft", "0x12")
	})
	t.Run("extra arguments", func(t *testing.T) {
		e.RunWithError(t, "pesto-go", "contract", "deploy-staking", "-r", e.Endpoint, "extra")
	})
}

func TestContractFactories(t *testing.T) {
	e := testcli.NewExecutor(t, true)

	e.Run(t, "pesto-go", "contract", "factories", "-r", e.Endpoint)
	out := e.Out.String()
	for _, name := range []string{pesto.FactoryName, pestonft.FactoryName, staking.FactoryName} {
		require.Contains(t, out, name+"\n")
	}
	require.Contains(t, out, "\tmethod: balanceOf(address) -> uint256 (safe)\n")
	require.Contains(t, out, "\tevent: Transfer(address,address,uint256)\n")

	e.RunWithError(t, "pesto-go", "contract", "factories", "-r", e.Endpoint, "extra")
}

func TestContractCallInvoke(t *testing.T) {
	e := testcli.NewExecutor(t, true)
	token := deploy(t, e, pesto.FactoryName)
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	t.Run("call", func(t *testing.T) {
		e.Run(t, "pesto-go", "contract", "call", "-r", e.Endpoint, token.Hex(), "symbol")
		e.CheckNextLine(t, "^VM state: HALT$")
		e.CheckNextLine(t, "^Gas consumed: [0-9]+$")
		e.CheckNextLine(t, "^Stack:$")
		e.GetNextLine(t)
		e.CheckEOF(t)
	})
	t.Run("call fault", func(t *testing.T) {
		e.Run(t, "pesto-go", "contract", "call", "-r", e.Endpoint, token.Hex(), "unknownMethod")
		e.CheckNextLine(t, "^VM state: FAULT$")
		e.CheckNextLine(t, "^Gas consumed: [0-9]+$")
		e.CheckNextLine(t, "^Exception: ")
	})
	t.Run("missing arguments", func(t *testing.T) {
		e.RunWithErrorCheck(t, "no contract address", "pesto-go", "contract", "call", "-r", e.Endpoint)
		e.RunWithErrorCheck(t, "no method", "pesto-go", "contract", "call", "-r", e.Endpoint, token.Hex())
		e.RunWithErrorCheck(t, "invalid contract address", "pesto-go", "contract", "call", "-r", e.Endpoint, "0x12", "symbol")
		e.RunWithErrorCheck(t, "unable to parse arguments", "pesto-go", "contract", "invoke", "-r", e.Endpoint, token.Hex(), "transfer", "]")
	})

	var txHash string
	t.Run("invoke", func(t *testing.T) {
		e.Run(t, "pesto-go", "contract", "invoke", "-r", e.Endpoint, token.Hex(), "transfer", to.Hex(), "10")
		line := e.GetNextLine(t)
		require.True(t, strings.HasPrefix(line, "Transaction: 0x"), line)
		txHash = strings.TrimPrefix(line, "Transaction: ")
		e.CheckNextLine(t, "^Block: [0-9]+$")
		e.CheckNextLine(t, "^VM state: HALT$")
		e.CheckNextLine(t, "^Gas consumed: [0-9]+$")
		e.CheckNextLine(t, "^Stack:$")
		e.CheckNextLine(t, "true")
		e.CheckNextLine(t, "^Events:$")
		e.CheckNextLine(t, "^\t"+token.Hex()+" Transfer ")
		e.CheckEOF(t)

		e.CheckHalt(t, common.HexToHash(txHash))
	})
	t.Run("applog", func(t *testing.T) {
		require.NotEmpty(t, txHash)
		e.Run(t, "pesto-go", "contract", "applog", "-r", e.Endpoint, txHash)
		e.CheckNextLine(t, "^Transaction: "+txHash+"$")
		e.CheckNextLine(t, "^Block: [0-9]+$")
		e.CheckNextLine(t, "^VM state: HALT$")

		e.RunWithErrorCheck(t, "no transaction hash", "pesto-go", "contract", "applog", "-r", e.Endpoint)
		e.RunWithErrorCheck(t, "invalid transaction hash", "pesto-go", "contract", "applog", "-r", e.Endpoint, "0x1234")
		e.RunWithError(t, "pesto-go", "contract", "applog", "-r", e.Endpoint, common.Hash{}.Hex())
	})
}
