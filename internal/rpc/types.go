package rpc

import (
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// RPCContext carries the slot a read was served at
type RPCContext struct {
	Slot uint64 `json:"slot"`
}

// AccountInfo is one account value from getMultipleAccounts.
// Data is a [payload, encoding] pair per the RPC wire format.
type AccountInfo struct {
	Data       []string `json:"data"`
	Owner      string   `json:"owner"`
	Lamports   uint64   `json:"lamports"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// DecodeData decodes the account payload according to its declared
// encoding (base64 by default, base58 for small legacy responses)
func (a *AccountInfo) DecodeData() ([]byte, error) {
	if len(a.Data) == 0 {
		return nil, fmt.Errorf("account data missing")
	}
	payload := a.Data[0]
	encoding := "base58"
	if len(a.Data) > 1 {
		encoding = a.Data[1]
	}

	switch encoding {
	case "base64":
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 account data: %w", err)
		}
		return raw, nil
	case "base58":
		raw, err := base58.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid base58 account data: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported account data encoding: %s", encoding)
	}
}

// MultipleAccountsResponse is the response from getMultipleAccounts.
// Null values mean the account does not exist.
type MultipleAccountsResponse struct {
	Result struct {
		Context RPCContext     `json:"context"`
		Value   []*AccountInfo `json:"value"`
	} `json:"result"`
	Error *RPCError `json:"error"`
}

// SlotResponse is the response from getSlot
type SlotResponse struct {
	Result uint64    `json:"result"`
	Error  *RPCError `json:"error"`
}
