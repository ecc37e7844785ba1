package recognition

import "fmt"

// Kind discriminates the State variants.
type Kind int

const (
	KindInitial Kind = iota
	KindLoading
	KindSuccess
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindInitial:
		return "initial"
	case KindLoading:
		return "loading"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Reason tells which failure produced an Error state. It only selects the
// message; both reasons end in the same state variant.
type Reason int

const (
	CapabilityFailure Reason = iota
	EmptyResult
)

func (r Reason) String() string {
	if r == EmptyResult {
		return "empty_result"
	}
	return "capability_failure"
}

// State is the published recognition state. It is one of Initial, Loading,
// Success or Error; the unexported method keeps the set closed.
type State interface {
	Kind() Kind
	isState()
}

type Initial struct{}

type Loading struct{}

type Success struct {
	OutputText string
}

type Error struct {
	Message string
	Reason  Reason
}

func (Initial) Kind() Kind { return KindInitial }
func (Loading) Kind() Kind { return KindLoading }
func (Success) Kind() Kind { return KindSuccess }
func (Error) Kind() Kind   { return KindError }

func (Initial) isState() {}
func (Loading) isState() {}
func (Success) isState() {}
func (Error) isState()   {}

// IsTerminal reports whether s ends a submission.
func IsTerminal(s State) bool {
	k := s.Kind()
	return k == KindSuccess || k == KindError
}

// OutputText returns the text of a Success state.
func OutputText(s State) (string, bool) {
	if ok, is := s.(Success); is {
		return ok.OutputText, true
	}
	return "", false
}

// StateView is the JSON shape of a State.
type StateView struct {
	State   string `json:"state"`
	Output  string `json:"output,omitempty"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// View flattens s for transport.
func View(s State) StateView {
	v := StateView{State: s.Kind().String()}
	switch st := s.(type) {
	case Success:
		v.Output = st.OutputText
	case Error:
		v.Message = st.Message
		v.Reason = st.Reason.String()
	}
	return v
}
