/*
Package smartcontract contains types to deal with contract parameters. RPC
invocations and CLI commands pass contract method arguments as typed
parameters (ABI type plus value), this package converts them to and from
stack items and checks items against the ABI types declared by contract
manifests.
*/
package smartcontract
