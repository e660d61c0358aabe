package server

import "github.com/agentchat/server/internal/wire"

func handleRegisterSkills(s *Server, c *Conn, frame []byte) {
	sess, ok := s.requireAuth(c)
	if !ok {
		return
	}
	var msg wire.RegisterSkillsMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed REGISTER_SKILLS")
		return
	}
	tags := s.skills.Register(sess.AgentID, msg.Skills)
	_ = sess.Sender.Send(wire.WithType(wire.TypeSkillsRegistered, map[string]any{
		"skills": tags,
	}))
}

func handleSearchSkills(s *Server, c *Conn, frame []byte) {
	if _, ok := s.requireAuth(c); !ok {
		return
	}
	var msg wire.SearchSkillsMsg
	if err := wire.Decode(frame, &msg); err != nil {
		c.sendError(wire.ErrInvalidMsg, "malformed SEARCH_SKILLS")
		return
	}
	matches := s.skills.Search(msg.Query)
	results := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		results = append(results, map[string]any{
			"agent_id": agentRef(m.AgentID),
			"skills":   m.Skills,
		})
	}
	_ = c.Send(wire.WithType(wire.TypeSkillsResult, map[string]any{"results": results}))
}
