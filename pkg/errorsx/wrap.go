package errorsx

import "errors"

// ReasonedError tags an error with the reason code used in logs and metrics.
type ReasonedError struct {
	Err    error
	Reason ReasonCode
}

func (e ReasonedError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "signbridge: " + string(e.Reason)
}

func (e ReasonedError) Unwrap() error { return e.Err }

// Wrap tags err with reason. An error that already carries a reason keeps it,
// so the innermost classification wins.
func Wrap(err error, reason ReasonCode) error {
	if err == nil || Reason(err) != ReasonUnknown {
		return err
	}
	return ReasonedError{Err: err, Reason: reason}
}

// Reason returns the reason attached anywhere in err's chain.
func Reason(err error) ReasonCode {
	var re ReasonedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ReasonUnknown
}

func HasReason(err error, reason ReasonCode) bool {
	return Reason(err) == reason
}
