package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// SigningPayload builds the canonical "<OP>|<field1>|<field2>|..." string
// that every signed operation verifies against. Fields are joined exactly
// in the order given, UTF-8, no trailing whitespace.
func SigningPayload(op string, fields ...string) string {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, op)
	parts = append(parts, fields...)
	return strings.Join(parts, "|")
}

// AuthPayload is the handshake signing payload: "auth|<nonce>|<challenge_id>|<timestamp>".
func AuthPayload(nonce, challengeID string, timestamp int64) string {
	return SigningPayload("auth", nonce, challengeID, strconv.FormatInt(timestamp, 10))
}

// ProposalPayload is the PROPOSAL signing payload.
func ProposalPayload(from, to, task string, amount float64, currency string, expiresAt int64) string {
	return SigningPayload("PROPOSAL", from, to, task, formatFloat(amount), currency, strconv.FormatInt(expiresAt, 10))
}

// AcceptPayload is the ACCEPT signing payload.
func AcceptPayload(proposalID, acceptor string, eloStake int) string {
	return SigningPayload("ACCEPT", proposalID, acceptor, strconv.Itoa(eloStake))
}

// RejectPayload is the REJECT signing payload.
func RejectPayload(proposalID, rejecter string) string {
	return SigningPayload("REJECT", proposalID, rejecter)
}

// CompletePayload is the COMPLETE signing payload.
func CompletePayload(proposalID, completer string) string {
	return SigningPayload("COMPLETE", proposalID, completer)
}

// DisputeIntentPayload is the DISPUTE_INTENT signing payload.
func DisputeIntentPayload(proposalID, disputant, commitment string) string {
	return SigningPayload("DISPUTE_INTENT", proposalID, disputant, commitment)
}

// DisputeRevealPayload is the DISPUTE_REVEAL signing payload.
func DisputeRevealPayload(disputeID, nonce, reason string) string {
	return SigningPayload("DISPUTE_REVEAL", disputeID, nonce, reason)
}

// ArbiterAcceptPayload is the ARBITER_ACCEPT signing payload.
func ArbiterAcceptPayload(disputeID, arbiter string) string {
	return SigningPayload("ARBITER_ACCEPT", disputeID, arbiter)
}

// ArbiterDeclinePayload is the ARBITER_DECLINE signing payload.
func ArbiterDeclinePayload(disputeID, arbiter string) string {
	return SigningPayload("ARBITER_DECLINE", disputeID, arbiter)
}

// ArbiterVotePayload is the ARBITER_VOTE signing payload.
func ArbiterVotePayload(disputeID, arbiter, verdict string) string {
	return SigningPayload("ARBITER_VOTE", disputeID, arbiter, verdict)
}

// VerifyResponsePayload is the peer-verification signing payload: just the nonce.
func VerifyResponsePayload(nonce string) string {
	return SigningPayload("VERIFY_RESPONSE", nonce)
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.8f", f)
}
