package agent

import "finance-copilot/internal/domain/ports/adapter"

// RepairToolMessages guarantees every tool-result message carries a tool
// name before it is sent upstream. A blank name is recovered from the
// nearest preceding assistant turn with tool calls: the call whose id
// matches, else that turn's first call. Messages that cannot be repaired are
// dropped. The input slice is not modified.
func RepairToolMessages(msgs []adapter.Message) []adapter.Message {
	out := make([]adapter.Message, 0, len(msgs))
	var lastCalls []adapter.ToolCall
	for _, m := range msgs {
		switch m.Role {
		case "assistant":
			if len(m.ToolCalls) > 0 {
				lastCalls = m.ToolCalls
			}
		case "tool":
			if m.ToolName == "" {
				name, id := inferToolName(lastCalls, m.ToolCallID)
				if name == "" {
					continue
				}
				m.ToolName = name
				if m.ToolCallID == "" {
					m.ToolCallID = id
				}
			}
		}
		out = append(out, m)
	}
	return out
}

func inferToolName(calls []adapter.ToolCall, callID string) (name, id string) {
	if len(calls) == 0 {
		return "", ""
	}
	if callID != "" {
		for _, c := range calls {
			if c.ID == callID && c.Name != "" {
				return c.Name, c.ID
			}
		}
	}
	return calls[0].Name, calls[0].ID
}
