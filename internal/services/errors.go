package services

import "errors"

// Sentinel errors handlers translate into HTTP statuses. Wrapped with
// fmt.Errorf("%w: ...") where a cause is worth carrying.
var (
	// ErrNotFound covers lookups by unknown identifiers or emails.
	ErrNotFound = errors.New("not found")

	// ErrInvalidReference means a reset link's user reference could not
	// be decoded or resolves to no account.
	ErrInvalidReference = errors.New("invalid reset reference")

	// ErrInvalidOrExpiredToken means a reset token failed verification:
	// wrong signature, stale password hash, or outside the window.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrMailDelivery means the reset mail could not be handed to the
	// relay. Kept distinct from validation failures.
	ErrMailDelivery = errors.New("failed to deliver mail")

	// ErrFetch means the ingestion fetch failed: transport error or a
	// non-2xx upstream status.
	ErrFetch = errors.New("failed to fetch document")

	// ErrScrape means the fetched document could not be parsed.
	ErrScrape = errors.New("failed to scrape document")
)
