package server

import "github.com/agentchat/server/internal/wire"

// handlerFunc processes one decoded inbound frame for a connection. It
// runs exclusively on the event loop goroutine.
type handlerFunc func(s *Server, c *Conn, frame []byte)

// router is the static message-type dispatch table spec.md §9 calls for:
// no dynamic method lookup, one entry per client->server message type.
var router = map[wire.MsgType]handlerFunc{
	wire.TypeIdentify:        handleIdentify,
	wire.TypeVerifyIdentity:  handleVerifyIdentity,
	wire.TypeCaptchaResponse: handleCaptchaResponse,

	wire.TypeMsg:           handleMsg,
	wire.TypeJoin:          handleJoin,
	wire.TypeLeave:         handleLeave,
	wire.TypeListChannels:  handleListChannels,
	wire.TypeListAgents:    handleListAgents,
	wire.TypeCreateChannel: handleCreateChannel,
	wire.TypeInvite:        handleInvite,
	wire.TypeSetNick:       handleSetNick,
	wire.TypeSetPresence:   handleSetPresence,

	wire.TypeRegisterSkills: handleRegisterSkills,
	wire.TypeSearchSkills:   handleSearchSkills,

	wire.TypeProposal: handleProposal,
	wire.TypeAccept:   handleAccept,
	wire.TypeReject:   handleReject,
	wire.TypeComplete: handleComplete,

	wire.TypeDisputeIntent:  handleDisputeIntent,
	wire.TypeDisputeReveal:  handleDisputeReveal,
	wire.TypeEvidence:       handleEvidence,
	wire.TypeArbiterAccept:  handleArbiterAccept,
	wire.TypeArbiterDecline: handleArbiterDecline,
	wire.TypeArbiterVote:    handleArbiterVote,

	wire.TypeVerifyRequest:  handleVerifyRequest,
	wire.TypeVerifyResponse: handleVerifyResponse,

	wire.TypeAdminApprove:    handleAdminApprove,
	wire.TypeAdminRevoke:     handleAdminRevoke,
	wire.TypeAdminList:       handleAdminList,
	wire.TypeAdminKick:       handleAdminKick,
	wire.TypeAdminBan:        handleAdminBan,
	wire.TypeAdminUnban:      handleAdminUnban,
	wire.TypeAdminVerify:     handleAdminVerify,
	wire.TypeAdminMOTD:       handleAdminMOTD,
	wire.TypeAdminOpenWindow: handleAdminOpenWindow,
}
