// Package contract holds the settlement contract's ABI and the calldata
// encoders/decoders built on it, shared by ingress (decoding
// NewPriorityRequest/BlockCommit logs), datarestore (replaying BlockCommit),
// and commitqueue (encoding commit/publishProof/executeBlock calls). Keeping
// one parsed abi.ABI here avoids every caller re-parsing its own copy of the
// same JSON, following the pattern the rest of the example pack uses for
// contract bindings (abi.JSON(strings.NewReader(...))).
package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// abiJSON declares only the surface this node actually drives: the two
// priority-op/commit events ingress and data restore watch, and the three
// settlement functions the commit queue calls. Views, admin functions, and
// everything else on the real deployed contract are out of scope.
const abiJSON = `[
  {
    "type": "event",
    "name": "NewPriorityRequest",
    "inputs": [
      {"name": "serialId", "type": "uint64", "indexed": false},
      {"name": "opType", "type": "uint8", "indexed": false},
      {"name": "pubData", "type": "bytes", "indexed": false},
      {"name": "expirationBlock", "type": "uint256", "indexed": false}
    ],
    "anonymous": false
  },
  {
    "type": "event",
    "name": "BlockCommit",
    "inputs": [
      {"name": "blockNumber", "type": "uint32", "indexed": false},
      {"name": "newRoot", "type": "bytes32", "indexed": false},
      {"name": "pubdata", "type": "bytes", "indexed": false},
      {"name": "timestamp", "type": "int64", "indexed": false}
    ],
    "anonymous": false
  },
  {
    "type": "function",
    "name": "commitBlock",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "blockNumber", "type": "uint32"},
      {"name": "previousRoot", "type": "bytes32"},
      {"name": "newRoot", "type": "bytes32"},
      {"name": "pubdata", "type": "bytes"},
      {"name": "timestamp", "type": "int64"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "publishBlockProof",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "blockNumber", "type": "uint32"},
      {"name": "proof", "type": "bytes"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "executeBlock",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "blockNumber", "type": "uint32"}
    ],
    "outputs": []
  }
]`

// Parsed returns the settlement contract's ABI, freshly parsed. Callers
// typically parse it once at startup and share the result.
func Parsed() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(abiJSON))
}
