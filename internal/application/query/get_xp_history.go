package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lernhub/progress-engine/internal/domain/reward"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET XP HISTORY QUERY
// A page of the user's ledger, newest first. The ledger is append-only, so
// offset pagination is stable enough here.
// ══════════════════════════════════════════════════════════════════════════════

// Pagination limits.
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// GetXPHistoryQuery contains the parameters for a ledger page.
type GetXPHistoryQuery struct {
	// UserID - the ledger owner.
	UserID string

	// Limit - page size. Zero means the default; values above the cap are
	// clamped.
	Limit int

	// Offset - rows to skip.
	Offset int
}

// Validate validates the query parameters and applies defaults.
func (q *GetXPHistoryQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_xp_history: user_id is required")
	}
	if q.Limit <= 0 {
		q.Limit = defaultHistoryLimit
	}
	if q.Limit > maxHistoryLimit {
		q.Limit = maxHistoryLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return nil
}

// XPTransactionDTO is one ledger row in the response.
type XPTransactionDTO struct {
	ID          string    `json:"id"`
	Amount      int       `json:"amount"`
	Reason      string    `json:"reason"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// XPHistoryDTO is a ledger page.
type XPHistoryDTO struct {
	UserID       string             `json:"user_id"`
	Transactions []XPTransactionDTO `json:"transactions"`
	Limit        int                `json:"limit"`
	Offset       int                `json:"offset"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetXPHistoryHandler handles the GetXPHistoryQuery.
type GetXPHistoryHandler struct {
	rewardRepo reward.Repository
}

// NewGetXPHistoryHandler creates a new GetXPHistoryHandler.
func NewGetXPHistoryHandler(rewardRepo reward.Repository) *GetXPHistoryHandler {
	return &GetXPHistoryHandler{rewardRepo: rewardRepo}
}

// Handle executes the history query.
func (h *GetXPHistoryHandler) Handle(ctx context.Context, q GetXPHistoryQuery) (*XPHistoryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_xp_history: validation failed: %w", err)
	}

	txs, err := h.rewardRepo.ListTransactions(ctx, q.UserID, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("get_xp_history: ledger read failed: %w", err)
	}

	dto := &XPHistoryDTO{
		UserID:       q.UserID,
		Transactions: make([]XPTransactionDTO, 0, len(txs)),
		Limit:        q.Limit,
		Offset:       q.Offset,
	}
	for _, tx := range txs {
		dto.Transactions = append(dto.Transactions, XPTransactionDTO{
			ID:          tx.ID,
			Amount:      tx.Amount,
			Reason:      string(tx.Reason),
			ReferenceID: tx.ReferenceID,
			CreatedAt:   tx.CreatedAt,
		})
	}
	return dto, nil
}
