package contracts

import "errors"

var (
	// ErrSymbolNotSupported means the provider answered authoritatively
	// that it does not carry the ticker; callers should mark the
	// (ticker, provider) pair not_supported rather than count a failure.
	ErrSymbolNotSupported = errors.New("symbol not supported by provider")

	// ErrNoProvider means every candidate provider failed or is excluded
	ErrNoProvider = errors.New("no provider available")

	// ErrInsufficientData marks conditions where a metric window cannot
	// be satisfied; engines represent this as null fields, not failures.
	ErrInsufficientData = errors.New("insufficient data")
)
