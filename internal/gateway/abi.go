package gateway

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract method and event names.
const (
	methodTokenCounter = "tokenCounter"
	methodTokenURI     = "tokenURI"
	methodOwnerOf      = "ownerOf"
	methodMint         = "mintNFT"
	eventTransfer      = "Transfer"
)

// avatarsABI is the subset of the collection contract the client uses.
const avatarsABI = `[
  {"type":"function","name":"tokenCounter","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tokenURI","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"mintNFT","stateMutability":"payable",
   "inputs":[{"name":"tokenURI","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
   {"name":"from","type":"address","indexed":true},
   {"name":"to","type":"address","indexed":true},
   {"name":"tokenId","type":"uint256","indexed":true}]}
]`

//nolint:gochecknoglobals // parsed once
var contractABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(avatarsABI))
	if err != nil {
		panic("gateway: invalid contract ABI: " + err.Error())
	}
	return parsed
}
