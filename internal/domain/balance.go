package domain

import "time"

// OperationCategory groups paid operations by generation domain.
type OperationCategory string

const (
	OperationCategoryImage OperationCategory = "image"
	OperationCategoryVideo OperationCategory = "video"
)

// OperationType identifies one paid operation within a category.
type OperationType string

const (
	OperationTextToImage  OperationType = "text-to-image"
	OperationImageToImage OperationType = "image-to-image"
	OperationTextToVideo  OperationType = "text-to-video"
	OperationImageToVideo OperationType = "image-to-video"
)

// TransactionKind marks the direction of a balance mutation.
type TransactionKind string

const (
	TransactionDeduct TransactionKind = "deduct"
	TransactionRefund TransactionKind = "refund"
	TransactionGrant  TransactionKind = "grant"
	TransactionSet    TransactionKind = "set"
)

// BalanceTransaction is one append-only bookkeeping entry. The user row's
// balance field is mutated by the same call that records the entry.
type BalanceTransaction struct {
	ID            string
	UserID        string
	Kind          TransactionKind
	Category      OperationCategory
	OperationType OperationType
	Amount        int
	BalanceBefore int
	BalanceAfter  int
	Metadata      map[string]any
	CreatedAt     time.Time
}
