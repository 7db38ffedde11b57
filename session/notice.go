package session

import "errors"

// Operation names the user action a notice reports on.
type Operation string

const (
	OpConnect  Operation = "connect"
	OpRegister Operation = "register"
	OpFetch    Operation = "fetch"
)

// Level of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is the generic message shown to the user for an outcome. It never
// contains error detail, which belongs in the diagnostic log.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

const (
	MsgRegistered       = "User registered successfully!"
	MsgConnected        = "Wallet connected."
	MsgFetched          = "User details loaded."
	MsgInstallProvider  = "Please install a wallet provider to use this app."
	MsgConnectFailed    = "Failed to connect to Ethereum."
	MsgRegisterFailed   = "Registration failed."
	MsgFetchFailed      = "Failed to fetch user details."
	MsgRegisterPending  = "Registration is still pending."
	MsgRegisterInFlight = "A registration is already in progress."
	MsgFixFields        = "Please correct the highlighted fields."
)

// NoticeFor returns the notice for the outcome of op.
func NoticeFor(op Operation, err error) Notice {
	if err == nil {
		switch op {
		case OpRegister:
			return Notice{Level: LevelSuccess, Message: MsgRegistered}
		case OpConnect:
			return Notice{Level: LevelSuccess, Message: MsgConnected}
		default:
			return Notice{Level: LevelSuccess, Message: MsgFetched}
		}
	}

	switch {
	case errors.Is(err, ErrProviderUnavailable):
		return Notice{Level: LevelError, Message: MsgInstallProvider}
	case errors.Is(err, ErrValidationFailed):
		return Notice{Level: LevelWarning, Message: MsgFixFields}
	case errors.Is(err, ErrRequestInFlight):
		return Notice{Level: LevelWarning, Message: MsgRegisterInFlight}
	case errors.Is(err, ErrTransactionTimeout):
		return Notice{Level: LevelWarning, Message: MsgRegisterPending}
	}

	switch op {
	case OpConnect:
		return Notice{Level: LevelError, Message: MsgConnectFailed}
	case OpRegister:
		return Notice{Level: LevelError, Message: MsgRegisterFailed}
	default:
		return Notice{Level: LevelError, Message: MsgFetchFailed}
	}
}
