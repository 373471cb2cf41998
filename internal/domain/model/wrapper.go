package model

// StyleClass is the rendering hint attached to a wrapper.
type StyleClass string

const (
	StyleInfo  StyleClass = "rc-message-info"
	StyleWarn  StyleClass = "rc-message-warn"
	StyleError StyleClass = "rc-message-error"
)

// ClassifySeverity maps four severities onto three visual buckets.
// FATAL shares the ERROR bucket; it only differs in popup behaviour.
func ClassifySeverity(s Severity) StyleClass {
	switch s {
	case SeverityInfo:
		return StyleInfo
	case SeverityWarn:
		return StyleWarn
	default:
		return StyleError
	}
}

// Wrapper is the renderable form of a message inside one surface's list.
// Its identity is Message.UseCaseID, not the wrapper instance.
type Wrapper struct {
	Message  Message        `json:"message"`
	Causes   []MessageCause `json:"causes,omitempty"`
	HasCause bool           `json:"has_cause"`
	Class    StyleClass     `json:"class"`
}

// NewWrapper builds a wrapper from a message and the causes carried by the
// event that introduced it.
func NewWrapper(msg Message, causes []MessageCause) *Wrapper {
	w := &Wrapper{
		Message: msg.Clone(),
		Causes:  CloneCauses(causes),
	}
	w.recompute()
	return w
}

func (w *Wrapper) UseCaseID() string { return w.Message.UseCaseID }

// AppendCauses adds causes at the end of the sequence. It reports whether
// anything was appended.
func (w *Wrapper) AppendCauses(causes []MessageCause) bool {
	if len(causes) == 0 {
		return false
	}
	w.Causes = append(w.Causes, CloneCauses(causes)...)
	w.recompute()
	return true
}

func (w *Wrapper) recompute() {
	w.HasCause = len(w.Causes) > 0
	w.Class = ClassifySeverity(w.Message.Severity)
}

// Clone returns a deep copy safe to hand to renderers.
func (w *Wrapper) Clone() Wrapper {
	return Wrapper{
		Message:  w.Message.Clone(),
		Causes:   CloneCauses(w.Causes),
		HasCause: w.HasCause,
		Class:    w.Class,
	}
}
