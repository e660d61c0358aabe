package wire

// ErrCode is the fixed error-code taxonomy from the protocol spec.
type ErrCode string

const (
	ErrAuthRequired         ErrCode = "AUTH_REQUIRED"
	ErrInvalidMsg           ErrCode = "INVALID_MSG"
	ErrNotAllowed           ErrCode = "NOT_ALLOWED"
	ErrVerificationExpired  ErrCode = "VERIFICATION_EXPIRED"
	ErrVerificationFailed   ErrCode = "VERIFICATION_FAILED"
	ErrCaptchaFailed        ErrCode = "CAPTCHA_FAILED"
	ErrCaptchaExpired       ErrCode = "CAPTCHA_EXPIRED"
	ErrLurkMode             ErrCode = "LURK_MODE"
	ErrRateLimited          ErrCode = "RATE_LIMITED"
	ErrChannelNotFound      ErrCode = "CHANNEL_NOT_FOUND"
	ErrChannelExists        ErrCode = "CHANNEL_EXISTS"
	ErrNotInvited           ErrCode = "NOT_INVITED"
	ErrInvalidName          ErrCode = "INVALID_NAME"
	ErrAgentNotFound        ErrCode = "AGENT_NOT_FOUND"
	ErrNoPubkey             ErrCode = "NO_PUBKEY"
	ErrSignatureRequired    ErrCode = "SIGNATURE_REQUIRED"
	ErrProposalNotFound     ErrCode = "PROPOSAL_NOT_FOUND"
	ErrInvalidProposal      ErrCode = "INVALID_PROPOSAL"
	ErrNotProposalParty     ErrCode = "NOT_PROPOSAL_PARTY"
	ErrInsufficientRep      ErrCode = "INSUFFICIENT_REPUTATION"
	ErrDisputeNotFound      ErrCode = "DISPUTE_NOT_FOUND"
	ErrDisputeExists        ErrCode = "DISPUTE_ALREADY_EXISTS"
	ErrDisputeNotParty      ErrCode = "DISPUTE_NOT_PARTY"
	ErrDisputeNotArbiter    ErrCode = "DISPUTE_NOT_ARBITER"
	ErrCommitmentMismatch   ErrCode = "DISPUTE_COMMITMENT_MISMATCH"
	ErrDisputeDeadlinePast  ErrCode = "DISPUTE_DEADLINE_PASSED"
	ErrBanned               ErrCode = "BANNED"
)
