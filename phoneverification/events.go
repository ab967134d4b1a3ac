package phoneverification

import "github.com/amp-labs/amp-state/effect"

// Event is the closed set of things the phone verification machine reacts to.
type Event interface {
	isEvent()
}

// SmsSent reports that the SendSms effect succeeded.
type SmsSent struct {
	Ticket effect.Ticket
}

// SmsFailed reports that the SendSms effect failed.
type SmsFailed struct {
	Ticket effect.Ticket
}

// CodeEntered carries the full contents of the code input after the user edited it.
type CodeEntered struct {
	Text string
}

// CodeVerified reports that the CheckCode effect accepted the code.
type CodeVerified struct {
	Ticket effect.Ticket
}

// CodeRejected reports that the CheckCode effect did not accept the code.
type CodeRejected struct {
	Ticket effect.Ticket
}

// SmsReceived carries the body of an incoming text message.
type SmsReceived struct {
	Message string
}

// SecondPassed is sent once a second while the screen is active.
type SecondPassed struct{}

// ResendTapped is sent when the user asks for a new code.
type ResendTapped struct{}

// EffectHandled acknowledges the pending effect. A non-zero Ticket only clears the
// effect it names, so a late acknowledgment never drops a newer request.
type EffectHandled struct {
	Ticket effect.Ticket
}

func (SmsSent) isEvent()       {}
func (SmsFailed) isEvent()     {}
func (CodeEntered) isEvent()   {}
func (CodeVerified) isEvent()  {}
func (CodeRejected) isEvent()  {}
func (SmsReceived) isEvent()   {}
func (SecondPassed) isEvent()  {}
func (ResendTapped) isEvent()  {}
func (EffectHandled) isEvent() {}

// Effect is a side effect the driver has to perform exactly once.
type Effect interface {
	isEffect()
}

// SendSms asks the driver to send a verification code to the phone.
type SendSms struct{}

// CheckCode asks the driver to verify Code against Phone.
type CheckCode struct {
	Phone string
	Code  string
}

// ShowError asks the driver to show Message to the user.
type ShowError struct {
	Message string
}

// Close asks the driver to finish the flow.
type Close struct{}

func (SendSms) isEffect()   {}
func (CheckCode) isEffect() {}
func (ShowError) isEffect() {}
func (Close) isEffect()     {}
