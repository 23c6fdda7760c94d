package survey

import "errors"

var (
	// Validation errors.
	ErrInvalidAccount      = errors.New("survey: invalid account address")
	ErrArrayLengthMismatch = errors.New("survey: survey and participant arrays differ in length")

	// Authorization errors.
	ErrProofExpired       = errors.New("survey: proof expired")
	ErrTokenAlreadyUsed   = errors.New("survey: proof token already used")
	ErrInvalidSigner      = errors.New("survey: signer is not an active manager")
	ErrInvalidMessageHash = errors.New("survey: signature does not verify over message hash")

	// Domain-state errors.
	ErrSurveyNotFound          = errors.New("survey: not found")
	ErrSurveyAlreadyExists     = errors.New("survey: already exists")
	ErrSurveyAlreadyCancelled  = errors.New("survey: already cancelled")
	ErrAllParticipantsRewarded = errors.New("survey: all participants rewarded")
	ErrUserAlreadyRewarded     = errors.New("survey: participant already rewarded")
	ErrInvalidManager          = errors.New("survey: unknown manager")

	// Monetary errors.
	ErrInvalidRewardAmount         = errors.New("survey: attached funds below required escrow")
	ErrInvalidTransactionValue     = errors.New("survey: attached funds below required escrow plus side payment")
	ErrArithmetic                  = errors.New("survey: arithmetic overflow")
	ErrNothingToRefund             = errors.New("survey: nothing to refund")
	ErrInsufficientContractBalance = errors.New("survey: insufficient contract balance")

	// Authority errors.
	ErrUnauthorized = errors.New("survey: caller is not the owner")
)
