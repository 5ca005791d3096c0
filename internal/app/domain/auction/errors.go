package auction

import "errors"

var (
	// ErrAuctionNotActive is returned when a bid or deposit arrives outside
	// the auction's open window.
	ErrAuctionNotActive = errors.New("auction not active")
	// ErrDepositRequired is returned when a bidder has no paid deposit.
	ErrDepositRequired = errors.New("deposit required")
	// ErrBidTooLow is returned when a bid does not beat the minimum next bid.
	ErrBidTooLow = errors.New("bid too low")
	// ErrInvalidState is returned for lifecycle transitions the auction's
	// current state does not allow.
	ErrInvalidState = errors.New("invalid auction state")
)
