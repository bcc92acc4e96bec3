package fundme

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInsufficientContribution = errors.New("Didn't send enough!")
	ErrNotOwner                 = errors.New("FundMe__NotOwner")
	ErrTransferFailed           = errors.New("Call failed")
	ErrIndexOutOfRange          = errors.New("funder index out of range")
)

// 低于最低捐款额时返回，errors.Is(err, ErrInsufficientContribution) 成立
type ContributionError struct {
	Amount  *big.Int // 捐款金额（wei）
	USD     *big.Int // 折合美元（1e18）
	Minimum *big.Int
}

func (e *ContributionError) Error() string {
	return fmt.Sprintf("%s (sent %s wei = %s usd, minimum %s usd)",
		ErrInsufficientContribution, e.Amount, e.USD, e.Minimum)
}

func (e *ContributionError) Unwrap() error {
	return ErrInsufficientContribution
}
