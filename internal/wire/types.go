// Package wire defines the envelope format and typed message vocabulary
// exchanged over the agentchat protocol.
package wire

import "encoding/json"

// MsgType is an uppercase protocol message token.
type MsgType string

// Client -> server message types.
const (
	TypeIdentify        MsgType = "IDENTIFY"
	TypeVerifyIdentity  MsgType = "VERIFY_IDENTITY"
	TypeCaptchaResponse MsgType = "CAPTCHA_RESPONSE"
	TypeMsg             MsgType = "MSG"
	TypeJoin            MsgType = "JOIN"
	TypeLeave           MsgType = "LEAVE"
	TypeListChannels    MsgType = "LIST_CHANNELS"
	TypeListAgents      MsgType = "LIST_AGENTS"
	TypeCreateChannel   MsgType = "CREATE_CHANNEL"
	TypeInvite          MsgType = "INVITE"
	TypeSetNick         MsgType = "SET_NICK"
	TypeSetPresence     MsgType = "SET_PRESENCE"
	TypeRegisterSkills  MsgType = "REGISTER_SKILLS"
	TypeSearchSkills    MsgType = "SEARCH_SKILLS"
	TypeProposal        MsgType = "PROPOSAL"
	TypeAccept          MsgType = "ACCEPT"
	TypeReject          MsgType = "REJECT"
	TypeComplete        MsgType = "COMPLETE"
	TypeDisputeIntent   MsgType = "DISPUTE_INTENT"
	TypeDisputeReveal   MsgType = "DISPUTE_REVEAL"
	TypeEvidence        MsgType = "EVIDENCE"
	TypeArbiterAccept   MsgType = "ARBITER_ACCEPT"
	TypeArbiterDecline  MsgType = "ARBITER_DECLINE"
	TypeArbiterVote     MsgType = "ARBITER_VOTE"
	TypeVerifyRequest   MsgType = "VERIFY_REQUEST"
	TypeVerifyResponse  MsgType = "VERIFY_RESPONSE"

	TypeAdminApprove    MsgType = "ADMIN_APPROVE"
	TypeAdminRevoke     MsgType = "ADMIN_REVOKE"
	TypeAdminList       MsgType = "ADMIN_LIST"
	TypeAdminKick       MsgType = "ADMIN_KICK"
	TypeAdminBan        MsgType = "ADMIN_BAN"
	TypeAdminUnban      MsgType = "ADMIN_UNBAN"
	TypeAdminVerify     MsgType = "ADMIN_VERIFY"
	TypeAdminMOTD       MsgType = "ADMIN_MOTD"
	TypeAdminOpenWindow MsgType = "ADMIN_OPEN_WINDOW"
)

// Server -> client message types.
const (
	TypeChallenge         MsgType = "CHALLENGE"
	TypeWelcome           MsgType = "WELCOME"
	TypeJoined            MsgType = "JOINED"
	TypeLeft              MsgType = "LEFT"
	TypeAgentJoined       MsgType = "AGENT_JOINED"
	TypeAgentLeft         MsgType = "AGENT_LEFT"
	TypeChannels          MsgType = "CHANNELS"
	TypeAgents            MsgType = "AGENTS"
	TypeCaptchaChallenge  MsgType = "CAPTCHA_CHALLENGE"
	TypePresenceChanged   MsgType = "PRESENCE_CHANGED"
	TypeNickChanged       MsgType = "NICK_CHANGED"
	TypeSessionDisplaced  MsgType = "SESSION_DISPLACED"
	TypeKicked            MsgType = "KICKED"
	TypeBanned            MsgType = "BANNED"
	TypePanelFormed       MsgType = "PANEL_FORMED"
	TypeArbiterAssigned   MsgType = "ARBITER_ASSIGNED"
	TypeCaseReady         MsgType = "CASE_READY"
	TypeVerdict           MsgType = "VERDICT"
	TypeDisputeFallback   MsgType = "DISPUTE_FALLBACK"
	TypeSettlementDone    MsgType = "SETTLEMENT_COMPLETE"
	TypeMOTDUpdate        MsgType = "MOTD_UPDATE"
	TypeAdminResult       MsgType = "ADMIN_RESULT"
	TypeError             MsgType = "ERROR"
	TypeDisputeIntentAck  MsgType = "DISPUTE_INTENT_ACK"
	TypeVerifySuccess     MsgType = "VERIFY_SUCCESS"
	TypeVerifyFailed      MsgType = "VERIFY_FAILED"
	TypeCallback          MsgType = "CALLBACK"
	TypeProposalExpired   MsgType = "PROPOSAL_EXPIRED"
	TypeSkillsRegistered  MsgType = "SKILLS_REGISTERED"
	TypeSkillsResult      MsgType = "SKILLS_RESULT"
)

// Envelope is the top-level wire record: one JSON object per frame.
type Envelope struct {
	Type    MsgType         `json:"type"`
	Payload json.RawMessage `json:"-"`
}

// rawEnvelope is used to splice Type out and keep the rest as the payload.
type rawEnvelope map[string]json.RawMessage

// Presence values for an Agent.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)
