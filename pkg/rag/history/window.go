package history

import "nexus-ai-be/pkg/llm"

// BuildWindow assembles the message list sent to a backend: the system
// preamble, the most recent maxTurns history turns in chronological order,
// then the current turn. System turns found in history are dropped so the
// preamble stays the only one. An empty system string omits the preamble.
func BuildWindow(system string, history []llm.Message, current llm.Message, maxTurns int) []llm.Message {
	if maxTurns < 0 {
		maxTurns = 0
	}

	kept := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if m.Role == llm.RoleSystem {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) > maxTurns {
		kept = kept[len(kept)-maxTurns:]
	}

	window := make([]llm.Message, 0, len(kept)+2)
	if system != "" {
		window = append(window, llm.SystemMessage(system))
	}
	window = append(window, kept...)
	return append(window, current)
}
