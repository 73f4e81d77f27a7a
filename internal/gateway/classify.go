package gateway

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

// revertErrorCode is the JSON-RPC error code nodes use for "execution reverted".
const revertErrorCode = 3

// ErrNoContract is returned when a call comes back with no data,
// which happens when nothing is deployed at the contract address.
var ErrNoContract = errors.New("no contract code at address")

// ProbeStatus is the outcome of an existence probe.
type ProbeStatus int

// Probe outcomes.
const (
	Minted ProbeStatus = iota
	NotMinted
	QueryFailed
)

// String returns the metrics and display label for a status.
func (s ProbeStatus) String() string {
	switch s {
	case Minted:
		return "minted"
	case NotMinted:
		return "not_minted"
	default:
		return "query_failed"
	}
}

// IsRevert reports whether err is a contract revert rather than a transport failure.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}

// classify maps a failed call onto a probe status.
func classify(err error) ProbeStatus {
	if IsRevert(err) {
		return NotMinted
	}
	return QueryFailed
}

// transportError wraps raw node failures as network errors. Structured errors pass through.
func transportError(err error) error {
	var ae *avatarerr.AvatarError
	if errors.As(err, &ae) {
		return err
	}
	return avatarerr.WithCause(avatarerr.ErrNetworkError, err)
}
