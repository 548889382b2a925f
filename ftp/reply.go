package ftp

import (
	"fmt"
	"io"
	"strings"
)

// defaultMessages are the reply texts sent when a handler doesn't supply its own
var defaultMessages = map[StatusCode]string{
	StatusDataConnectionAlreadyOpen:        "Data connection already open; transfer starting.",
	StatusFileStatusOK:                     "File status okay; about to open data connection.",
	StatusCommandOK:                        "Command okay.",
	StatusCommandNotImplementedSuperfluous: "Command not implemented, superfluous at this site.",
	StatusSystemStatus:                     "System status, or system help reply.",
	StatusFileStatus:                       "File status.",
	StatusNameSystemType:                   "UNKNOWN system type.",
	StatusServiceReadyForNewUser:           "Service ready for new user.",
	StatusServiceClosingControlConnection:  "Service closing control connection.",
	StatusClosingDataConnection:            "Closing data connection.",
	StatusEnteringPassiveMode:              "Entering Passive Mode.",
	StatusUserLoggedIn:                     "User logged in, proceed.",
	StatusFileActionOK:                     "Requested file action okay, completed.",
	StatusPathnameCreated:                  "\"PATHNAME\" created.",
	StatusUserNameOK:                       "User name okay, need password.",
	StatusNeedAccountForLogin:              "Need account for login.",
	StatusFileActionPending:                "Requested file action pending further information.",
	StatusServiceNotAvailable:              "Service not available, closing control connection.",
	StatusCantOpenDataConnection:           "Can't open data connection.",
	StatusRequestedFileActionNotTaken:      "Requested file action not taken.",
	StatusLocalProcessingError:             "Requested action aborted: local error in processing.",
	StatusSyntaxError:                      "Syntax error, command unrecognized.",
	StatusSyntaxErrorInParameters:          "Syntax error in parameters or arguments.",
	StatusCommandNotImplemented:            "Command not implemented.",
	StatusBadSequenceOfCommands:            "Bad sequence of commands.",
	StatusNotLoggedIn:                      "Not logged in.",
	StatusFileUnavailable:                  "Requested action not taken.",
}

// StatusText returns the default message of the code, empty for codes outside the catalog
func StatusText(code StatusCode) string {
	return defaultMessages[code]
}

// Reply is a single line server reply
type Reply struct {
	Code    StatusCode
	Message string
}

// NewReply builds a reply, an empty message is replaced by the default text of the code.
// Line breaks in message are flattened so the reply always stays on one line.
func NewReply(code StatusCode, message string) Reply {
	if message == "" {
		message = StatusText(code)
	}
	if message == "" {
		message = "."
	}
	return Reply{
		Code:    code,
		Message: strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(message),
	}
}

// String returns the wire form "<code> <message>\r\n"
func (r Reply) String() string {
	return fmt.Sprintf("%d %s\r\n", r.Code, r.Message)
}

// WriteTo writes the reply in one call
func (r Reply) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.String())
	return int64(n), err
}
