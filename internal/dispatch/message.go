package dispatch

import (
	"fmt"
	"strings"

	"github.com/heraldhq/herald/internal/channel"
)

// buildMessage renders the task's template and attaches the event context
// rich channels use for formatting.
func (c *Coordinator) buildMessage(t *Task) (channel.Message, error) {
	rendered, err := c.renderer.Render(t.Template, t.Event.Payload, t.Channel)
	if err != nil {
		return channel.Message{}, err
	}
	return channel.Message{
		Rendered:  rendered,
		EventType: t.Event.EventType,
		Priority:  t.Event.Priority,
		Fields:    contextFields(t.Event.Payload),
	}, nil
}

// contextFields flattens payload entries into display fields. Keys already
// rendered into the body text (message), engine-level keys (priority,
// timestamp) and private keys (leading underscore) are skipped.
func contextFields(payload map[string]any) map[string]string {
	if len(payload) == 0 {
		return nil
	}
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		switch k {
		case "message", "priority", "timestamp":
			continue
		}
		if strings.HasPrefix(k, "_") {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
