package domain

import "errors"

// Error kinds from spec §7. Each is a sentinel so callers can test with
// errors.Is; wrapping with fmt.Errorf("...: %w", ErrRegistryMiss) keeps
// the human-readable detail while preserving the kind.
var (
	// ErrRegistryMiss is returned when a canonical symbol has no
	// registry entry and auto-fill is disabled or not applicable, or
	// when auto-fill's contract-details lookup found no usable match.
	ErrRegistryMiss = errors.New("registry: unknown canonical symbol")

	// ErrRegistryAmbiguous is returned when auto-fill's contract-details
	// lookup returned more than one usable match, or the lookup failed.
	ErrRegistryAmbiguous = errors.New("registry: ambiguous auto-fill lookup")

	// ErrRegistryConflict is returned when ensure() would bind a
	// broker id that is already bound to a different canonical symbol.
	ErrRegistryConflict = errors.New("registry: broker id already bound to a different symbol")

	// ErrRegistryStore is returned when the backing store is
	// unavailable or a write fails.
	ErrRegistryStore = errors.New("registry: store error")

	// ErrCapabilityUnsupported is returned when the target broker
	// cannot natively express the requested order type.
	ErrCapabilityUnsupported = errors.New("router: order type unsupported by broker")

	// ErrInvalidIntent is returned when an OrderIntent is missing a
	// field required by its order type.
	ErrInvalidIntent = errors.New("router: invalid order intent")

	// ErrBrokerTransient marks a recoverable network/connection error;
	// adapters retry internally and never surface this to order
	// callers except as a send-time failure.
	ErrBrokerTransient = errors.New("broker: transient error")

	// ErrBrokerPermanent marks an operator-action-required condition
	// (auth failure, connection quota exceeded); the affected
	// subsystem stops and logs, it does not retry.
	ErrBrokerPermanent = errors.New("broker: permanent error")

	// ErrOrderNotFound is returned by the broker-A adapter's
	// CancelOrder for a vt_orderid missing from its own order cache.
	ErrOrderNotFound = errors.New("oms: order not found")

	// ErrUnknownBroker is returned when an RPC or router request names
	// an account alias with no registered adapter.
	ErrUnknownBroker = errors.New("server: unknown broker account")
)
