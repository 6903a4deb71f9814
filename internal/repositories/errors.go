package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrBalanceWouldGoNegative = errors.New("balance would go negative")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrAlreadyReversed        = errors.New("transaction already reversed")
	ErrAlreadyFavorited       = errors.New("already favorited")
	ErrFavoriteNotFound       = errors.New("favorite not found")
	ErrSelfReference          = errors.New("account cannot reference itself")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
