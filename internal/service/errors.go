package service

import "errors"

var (
	ErrStockNotFound          = errors.New("stock item not found")
	ErrSaleNotFound           = errors.New("sale not found")
	ErrInsufficientStock      = errors.New("insufficient stock remaining")
	ErrWrongOwner             = errors.New("entity belongs to a different account")
	ErrBatchNotFound          = errors.New("upload batch not found")
	ErrBatchAlreadyProcessing = errors.New("batch is already being processed")
	ErrBatchTerminal          = errors.New("batch already reached a terminal state")
	ErrUnknownKind            = errors.New("unknown file kind")
)
