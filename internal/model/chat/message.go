package chat

// Message roles as stored on disk and sent to the completion backend.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single conversation turn. Animated is a UI hint telling the
// frontend to type out the reply; it carries no meaning beyond presentation.
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	Animated bool   `json:"animated,omitempty"`
}

// Transcript is an ordered message sequence identified by a chat id.
type Transcript []Message

// Clone returns an independent copy so callers can mutate freely.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	copied := make(Transcript, len(t))
	copy(copied, t)
	return copied
}

// Window returns the last n messages, or the whole transcript when shorter.
func (t Transcript) Window(n int) Transcript {
	if n <= 0 || len(t) <= n {
		return t
	}
	return t[len(t)-n:]
}
