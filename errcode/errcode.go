package errcode

// Code is a stable, externally visible error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Device taxonomy.
	DeviceNotFound Code = "device_not_found" // unknown logical device name
	Communication  Code = "communication_error"
	DeviceBusy     Code = "device_busy"
	DeviceTimeout  Code = "device_timeout"
	DeviceConfig   Code = "device_config_error"
	Hardware       Code = "hardware_error" // generic hardware fault (e.g. address verify)

	// Resource ownership.
	PinInUse   Code = "pin_in_use"
	UnknownPin Code = "unknown_pin"
	UnknownBus Code = "unknown_bus"
	BusInUse   Code = "bus_in_use"

	Busy    Code = "busy"
	Timeout Code = "timeout"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is makes errors.Is(err, errcode.Communication) work through wrapping.
func (e *E) Is(target error) bool {
	if c, ok := target.(Code); ok {
		return e.C == c
	}
	return false
}

// Wrap builds an E around a cause.
func Wrap(c Code, op string, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

// Msgf builds an E with a free-form message and no cause.
func Msgf(c Code, op, msg string) *E {
	return &E{C: c, Op: op, Msg: msg}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		if inner := u.Unwrap(); inner != nil {
			if c := Of(inner); c != Error {
				return c
			}
		}
	}
	return Error
}
