package types

import "errors"

// Failure kinds shared by the ledger and the analytics packages. Callers match them with errors.Is.
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrPositionNotFound       = errors.New("position not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrSymbolNotFound         = errors.New("symbol not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrInvalidOrder           = errors.New("invalid order")
	ErrInsufficientLiquidity  = errors.New("insufficient liquidity")
	ErrInvalidInputSeries     = errors.New("invalid input series")
	ErrInvalidPeriod          = errors.New("invalid period")
	ErrInvalidConfig          = errors.New("invalid config")
)
