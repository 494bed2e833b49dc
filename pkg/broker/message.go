package broker

// Message is a single inbound bus message as seen by a Handler. Data is an
// opaque byte sequence; its interpretation belongs to the bound task.
type Message struct {
	Subject string
	Reply   string
	Data    []byte

	respond func(payload []byte) error
}

// NewMessage builds a Message with the given respond function. Backends and
// tests use it; respond may be nil when the message carries no reply subject.
func NewMessage(subject, reply string, data []byte, respond func([]byte) error) *Message {
	return &Message{Subject: subject, Reply: reply, Data: data, respond: respond}
}

// Respond publishes payload to the message's reply subject.
func (m *Message) Respond(payload []byte) error {
	if m.Reply == "" || m.respond == nil {
		return ErrNoReplySubject
	}
	return m.respond(payload)
}
