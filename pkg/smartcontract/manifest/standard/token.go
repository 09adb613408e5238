package standard

import (
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract"
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
)

func p(name string, typ smartcontract.ParamType) manifest.Parameter {
	return manifest.NewParameter(name, typ)
}

// TokenBase contains methods common to ERC-20 and ERC-721 token standards.
var TokenBase = &Standard{
	Manifest: manifest.Manifest{
		ABI: manifest.ABI{
			Methods: []manifest.Method{
				{
					Name:       "name",
					Parameters: []manifest.Parameter{},
					ReturnType: smartcontract.StringType,
					Safe:       true,
				},
				{
					Name:       "symbol",
					Parameters: []manifest.Parameter{},
					ReturnType: smartcontract.StringType,
					Safe:       true,
				},
				{
					Name:       "balanceOf",
					Parameters: []manifest.Parameter{p("owner", smartcontract.AddressType)},
					ReturnType: smartcontract.Uint256Type,
					Safe:       true,
				},
			},
		},
	},
}

// ERC20 is a fungible token standard.
var ERC20 = &Standard{
	Base: TokenBase,
	Manifest: manifest.Manifest{
		ABI: manifest.ABI{
			Methods: []manifest.Method{
				{
					Name:       "decimals",
					Parameters: []manifest.Parameter{},
					ReturnType: smartcontract.Uint256Type,
					Safe:       true,
				},
				{
					Name:       "totalSupply",
					Parameters: []manifest.Parameter{},
					ReturnType: smartcontract.Uint256Type,
					Safe:       true,
				},
				{
					Name: "transfer",
					Parameters: []manifest.Parameter{
						p("to", smartcontract.AddressType),
						p("amount", smartcontract.Uint256Type),
					},
					ReturnType: smartcontract.BoolType,
				},
				{
					Name: "allowance",
					Parameters: []manifest.Parameter{
						p("owner", smartcontract.AddressType),
						p("spender", smartcontract.AddressType),
					},
					ReturnType: smartcontract.Uint256Type,
					Safe:       true,
				},
				{
					Name: "approve",
					Parameters: []manifest.Parameter{
						p("spender", smartcontract.AddressType),
						p("amount", smartcontract.Uint256Type),
					},
					ReturnType: smartcontract.BoolType,
				},
				{
					Name: "transferFrom",
					Parameters: []manifest.Parameter{
						p("from", smartcontract.AddressType),
						p("to", smartcontract.AddressType),
						p("amount", smartcontract.Uint256Type),
					},
					ReturnType: smartcontract.BoolType,
				},
			},
			Events: []manifest.Event{
				{
					Name: "Transfer",
					Parameters: []manifest.Parameter{
						p("from", smartcontract.AddressType),
						p("to", smartcontract.AddressType),
						p("value", smartcontract.Uint256Type),
					},
				},
				{
					Name: "Approval",
					Parameters: []manifest.Parameter{
						p("owner", smartcontract.AddressType),
						p("spender", smartcontract.AddressType),
						p("value", smartcontract.Uint256Type),
					},
				},
			},
		},
	},
}

// ERC721 is a non-fungible token standard.
var ERC721 = &Standard{
	Base: TokenBase,
	Manifest: manifest.Manifest{
		ABI: manifest.ABI{
			Methods: []manifest.Method{
				{
					Name:       "ownerOf",
					Parameters: []manifest.Parameter{p("tokenId", smartcontract.Uint256Type)},
					ReturnType: smartcontract.AddressType,
					Safe:       true,
				},
				{
					Name: "safeTransferFrom",
					Parameters: []manifest.Parameter{
						p("from", smartcontract.AddressType),
						p("to", smartcontract.AddressType),
						p("tokenId", smartcontract.Uint256Type),
						p("data", smartcontract.BytesType),
					},
					ReturnType: smartcontract.VoidType,
				},
				{
					Name: "safeTransferFrom",
					Parameters: []manifest.Parameter{
						p("from", smartcontract.AddressType),
						p("to", smartcontract.AddressType),
						p("tokenId", smartcontract.Uint256Type),
					},
					ReturnType: smartcontract.VoidType,
				},
				{
					Name: "transferFrom",
					Parameters: []manifest.Parameter{
						p("from", smartcontract.AddressType),
						p("to", smartcontract.AddressType),
						p("tokenId", smartcontract.Uint256Type),
					},
					ReturnType: smartcontract.VoidType,
				},
				{
					Name: "approve",
					Parameters: []manifest.Parameter{
						p("to", smartcontract.AddressType),
						p("tokenId", smartcontract.Uint256Type),
					},
					ReturnType: smartcontract.VoidType,
				},
				{
					Name: "setApprovalForAll",
					Parameters: []manifest.Parameter{
						p("operator", smartcontract.AddressType),
						p("approved", smartcontract.BoolType),
					},
					ReturnType: smartcontract.VoidType,
				},
				{
					Name:       "getApproved",
					Parameters: []manifest.Parameter{p("tokenId", smartcontract.Uint256Type)},
					ReturnType: smartcontract.AddressType,
					Safe:       true,
				},
				{
					Name: "isApprovedForAll",
					Parameters: []manifest.Parameter{
						p("owner", smartcontract.AddressType),
						p("operator", smartcontract.AddressType),
					},
					ReturnType: smartcontract.BoolType,
					Safe:       true,
				},
			},
			Events: []manifest.Event{
				{
					Name: "Transfer",
					Parameters: []manifest.Parameter{
						p("from", smartcontract.AddressType),
						p("to", smartcontract.AddressType),
						p("tokenId", smartcontract.Uint256Type),
					},
				},
				{
					Name: "Approval",
					Parameters: []manifest.Parameter{
						p("owner", smartcontract.AddressType),
						p("approved", smartcontract.AddressType),
						p("tokenId", smartcontract.Uint256Type),
					},
				},
				{
					Name: "ApprovalForAll",
					Parameters: []manifest.Parameter{
						p("owner", smartcontract.AddressType),
						p("operator", smartcontract.AddressType),
						p("approved", smartcontract.BoolType),
					},
				},
			},
		},
	},
	Optional: []manifest.Method{
		{
			Name:       "totalSupply",
			Parameters: []manifest.Parameter{},
			ReturnType: smartcontract.Uint256Type,
			Safe:       true,
		},
	},
}

// ERC721Receiver is the interface of contracts accepting safe ERC-721
// transfers.
var ERC721Receiver = &Standard{
	Manifest: manifest.Manifest{
		ABI: manifest.ABI{
			Methods: []manifest.Method{
				{
					Name: manifest.MethodOnERC721Received,
					Parameters: []manifest.Parameter{
						p("operator", smartcontract.AddressType),
						p("from", smartcontract.AddressType),
						p("tokenId", smartcontract.Uint256Type),
						p("data", smartcontract.BytesType),
					},
					ReturnType: smartcontract.Bytes4Type,
				},
			},
		},
	},
}

// Ownable is a single-owner access control interface.
var Ownable = &Standard{
	Manifest: manifest.Manifest{
		ABI: manifest.ABI{
			Methods: []manifest.Method{
				{
					Name:       "owner",
					Parameters: []manifest.Parameter{},
					ReturnType: smartcontract.AddressType,
					Safe:       true,
				},
				{
					Name:       "transferOwnership",
					Parameters: []manifest.Parameter{p("newOwner", smartcontract.AddressType)},
					ReturnType: smartcontract.VoidType,
				},
				{
					Name:       "renounceOwnership",
					Parameters: []manifest.Parameter{},
					ReturnType: smartcontract.VoidType,
				},
			},
			Events: []manifest.Event{
				{
					Name: "OwnershipTransferred",
					Parameters: []manifest.Parameter{
						p("previousOwner", smartcontract.AddressType),
						p("newOwner", smartcontract.AddressType),
					},
				},
			},
		},
	},
}
