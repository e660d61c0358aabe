package wire

// Inbound client -> server message bodies. Each embeds its own Type so
// it round-trips through Encode/Decode without a wrapper.

type IdentifyMsg struct {
	Type   MsgType `json:"type"`
	Name   string  `json:"name"`
	Pubkey string  `json:"pubkey,omitempty"`
}

type VerifyIdentityMsg struct {
	Type        MsgType `json:"type"`
	ChallengeID string  `json:"challenge_id"`
	Signature   string  `json:"signature"`
	Timestamp   int64   `json:"timestamp"`
}

type CaptchaResponseMsg struct {
	Type     MsgType `json:"type"`
	CaptchaID string `json:"captcha_id"`
	Answer   string  `json:"answer"`
}

type ChatMsg struct {
	Type    MsgType `json:"type"`
	To      string  `json:"to"`
	Content string  `json:"content"`
}

type JoinMsg struct {
	Type    MsgType `json:"type"`
	Channel string  `json:"channel"`
}

type LeaveMsg struct {
	Type    MsgType `json:"type"`
	Channel string  `json:"channel"`
}

type CreateChannelMsg struct {
	Type         MsgType `json:"type"`
	Channel      string  `json:"channel"`
	InviteOnly   bool    `json:"invite_only,omitempty"`
	VerifiedOnly bool    `json:"verified_only,omitempty"`
}

type InviteMsg struct {
	Type    MsgType `json:"type"`
	Channel string  `json:"channel"`
	Agent   string  `json:"agent"`
}

type SetNickMsg struct {
	Type MsgType `json:"type"`
	Name string  `json:"name"`
}

type SetPresenceMsg struct {
	Type     MsgType `json:"type"`
	Presence string  `json:"presence"`
	Status   string  `json:"status,omitempty"`
}

type RegisterSkillsMsg struct {
	Type   MsgType  `json:"type"`
	Skills []string `json:"skills"`
}

type SearchSkillsMsg struct {
	Type  MsgType `json:"type"`
	Query string  `json:"query"`
}

type ProposalMsg struct {
	Type          MsgType `json:"type"`
	To            string  `json:"to"`
	Task          string  `json:"task"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	PaymentCode   string  `json:"payment_code,omitempty"`
	EloStakeSelf  int     `json:"elo_stake_self,omitempty"`
	EloStakeOther int     `json:"elo_stake_other,omitempty"`
	ExpiresAt     int64   `json:"expires_at"`
	Signature     string  `json:"signature"`
}

type AcceptMsg struct {
	Type       MsgType `json:"type"`
	ProposalID string  `json:"proposal_id"`
	EloStake   int     `json:"elo_stake,omitempty"`
	Signature  string  `json:"signature"`
}

type RejectMsg struct {
	Type       MsgType `json:"type"`
	ProposalID string  `json:"proposal_id"`
	Signature  string  `json:"signature"`
}

type CompleteMsg struct {
	Type       MsgType `json:"type"`
	ProposalID string  `json:"proposal_id"`
	Signature  string  `json:"signature"`
}

type DisputeIntentMsg struct {
	Type       MsgType `json:"type"`
	ProposalID string  `json:"proposal_id"`
	Commitment string  `json:"commitment"`
	Signature  string  `json:"signature"`
}

type DisputeRevealMsg struct {
	Type      MsgType `json:"type"`
	DisputeID string  `json:"dispute_id"`
	Nonce     string  `json:"nonce"`
	Reason    string  `json:"reason"`
	Signature string  `json:"signature"`
}

type EvidenceMsg struct {
	Type      MsgType  `json:"type"`
	DisputeID string   `json:"dispute_id"`
	Items     []string `json:"items"`
	Statement string   `json:"statement"`
	Signature string   `json:"signature"`
}

type ArbiterAcceptMsg struct {
	Type      MsgType `json:"type"`
	DisputeID string  `json:"dispute_id"`
	Signature string  `json:"signature"`
}

type ArbiterDeclineMsg struct {
	Type      MsgType `json:"type"`
	DisputeID string  `json:"dispute_id"`
	Signature string  `json:"signature"`
}

type ArbiterVoteMsg struct {
	Type      MsgType `json:"type"`
	DisputeID string  `json:"dispute_id"`
	Verdict   string  `json:"verdict"`
	Reasoning string  `json:"reasoning,omitempty"`
	Signature string  `json:"signature"`
}

type VerifyRequestMsg struct {
	Type   MsgType `json:"type"`
	Target string  `json:"target"`
	Nonce  string  `json:"nonce"`
}

type VerifyResponseMsg struct {
	Type      MsgType `json:"type"`
	RequestID string  `json:"request_id"`
	Signature string  `json:"signature"`
}

type AdminMsg struct {
	Type     MsgType `json:"type"`
	AdminKey string  `json:"admin_key"`
	Target   string  `json:"target,omitempty"`
	Note     string  `json:"note,omitempty"`
	Text     string  `json:"text,omitempty"`
	Duration int64   `json:"duration_ms,omitempty"`
}

// ErrorMsg is the universal server->client error envelope.
type ErrorMsg struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

func NewError(code ErrCode, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, Code: string(code), Message: message}
}
