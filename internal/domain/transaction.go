package domain

// TxKind discriminates the transaction tagged union. Raw API payloads are
// normalized into exactly one of these kinds at the chain client boundary;
// anything unrecognized becomes TxOther rather than being dropped.
type TxKind string

const (
	TxTransfer     TxKind = "token_transfer"
	TxContractCall TxKind = "contract_call"
	TxOther        TxKind = "other"
)

// TransferDetail carries the fields specific to a native token transfer.
// Amount is in micro-STX.
type TransferDetail struct {
	Recipient   string
	AmountMicro uint64
	Memo        string
}

// ContractCallDetail carries the fields specific to a contract call.
// ContractID is "{address}.{name}".
type ContractCallDetail struct {
	ContractID   string
	FunctionName string
}

// Transaction is the normalized, closed representation of a chain
// transaction. Exactly one of Transfer/ContractCall is non-nil, matching
// Kind; both are nil for TxOther.
type Transaction struct {
	TxID        string
	Kind        TxKind
	Sender      string
	FeeMicro    uint64
	BlockHeight int64
	Timestamp   int64 // Unix ms
	Success     bool

	Transfer     *TransferDetail
	ContractCall *ContractCallDetail
}

// ContractAddress returns the address part of the called contract ID, or ""
// for non-contract-call transactions.
func (t *Transaction) ContractAddress() string {
	if t.ContractCall == nil {
		return ""
	}
	id := t.ContractCall.ContractID
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return id[:i]
		}
	}
	return id
}
