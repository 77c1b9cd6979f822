// internal/solana/transaction/validator.go
package transaction

import (
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Validator runs cheap structural checks before a transaction is broadcast.
type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{logger: logger.Named("tx-validator")}
}

func (v *Validator) Validate(tx *solana.Transaction) error {
	if len(tx.Signatures) == 0 {
		return ErrInvalidSignature
	}
	if tx.Message.RecentBlockhash == (solana.Hash{}) {
		return ErrInvalidBlockhash
	}
	if len(tx.Message.Instructions) == 0 {
		return ErrInvalidInstruction
	}
	return nil
}
