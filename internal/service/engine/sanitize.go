package engine

import "github.com/sandevgo/opsbot/internal/core"

// sanitizeToolCalls drops tool messages whose requesting assistant message
// is not in the window. Providers reject histories where a tool result has
// no matching tool call, which happens after trimming or an interrupted
// turn. An assistant message opens a set of valid call IDs; any other role
// closes it.
func sanitizeToolCalls(msgs []core.Message) []core.Message {
	var out []core.Message
	valid := map[string]bool{}

	for _, m := range msgs {
		switch m.Role {
		case core.RoleAssistant:
			valid = make(map[string]bool, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				valid[tc.ID] = true
			}
		case core.RoleTool:
			if !valid[m.ToolCallID] {
				continue
			}
		default:
			valid = map[string]bool{}
		}
		out = append(out, m)
	}
	return out
}
