package gem

import "errors"

// Domain error taxonomy. All errors are local and non-fatal: a rejected
// operation leaves every zone, the ledger, and the unlock registry unchanged.
var (
	// ErrUnknownTemplate is returned when an instance is requested for a
	// template ID not present in the catalog.
	ErrUnknownTemplate = errors.New("unknown gem template")

	// ErrUnknownAugmentation is returned when an augmentation ID is not
	// present in the catalog.
	ErrUnknownAugmentation = errors.New("unknown augmentation")

	// ErrInsufficientResource is returned when a play's total cost exceeds
	// the supplied stamina budget.
	ErrInsufficientResource = errors.New("insufficient stamina for play")

	// ErrNotEligible is returned when a class attempts to unlock a template
	// reserved for another class.
	ErrNotEligible = errors.New("class not eligible for template")

	// ErrAlreadyUnlocked is returned when a template is already unlocked for
	// the requesting scope.
	ErrAlreadyUnlocked = errors.New("template already unlocked")

	// ErrInsufficientFunds is returned when the wallet balance cannot cover
	// an unlock cost.
	ErrInsufficientFunds = errors.New("insufficient funds for unlock")

	// ErrNotInHand is returned by the replace-in-hand commit when the target
	// instance is not currently held.
	ErrNotInHand = errors.New("instance not in hand")

	// ErrUnknownPlayer is returned for operations on an unregistered player.
	ErrUnknownPlayer = errors.New("unknown player")

	// ErrPlayerExists is returned when registering an already-known player.
	ErrPlayerExists = errors.New("player already registered")
)
