package chain

import (
	"strconv"

	"stacks-whale-intel/internal/domain"
)

// normalizeTransaction converts a raw API transaction into the closed
// domain.Transaction union. Unknown tx types and malformed sub-payloads
// normalize to TxOther so no event is silently lost.
func normalizeTransaction(raw *rawTransaction) domain.Transaction {
	tx := domain.Transaction{
		TxID:        raw.TxID,
		Kind:        domain.TxOther,
		Sender:      raw.SenderAddress,
		FeeMicro:    parseMicro(raw.FeeRate),
		BlockHeight: raw.BlockHeight,
		Timestamp:   raw.BlockTime * 1000,
		Success:     raw.TxStatus == "success",
	}

	switch raw.TxType {
	case "token_transfer":
		if raw.TokenTransfer == nil {
			return tx
		}
		tx.Kind = domain.TxTransfer
		tx.Transfer = &domain.TransferDetail{
			Recipient:   raw.TokenTransfer.RecipientAddress,
			AmountMicro: parseMicro(raw.TokenTransfer.Amount),
			Memo:        raw.TokenTransfer.Memo,
		}
	case "contract_call":
		if raw.ContractCall == nil {
			return tx
		}
		tx.Kind = domain.TxContractCall
		tx.ContractCall = &domain.ContractCallDetail{
			ContractID:   raw.ContractCall.ContractID,
			FunctionName: raw.ContractCall.FunctionName,
		}
	}

	return tx
}

// parseMicro parses a micro-unit amount encoded as a decimal string.
// Malformed values parse to zero rather than failing the whole payload.
func parseMicro(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
