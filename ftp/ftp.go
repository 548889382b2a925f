// Package ftp implements the control channel of an FTP server: the reply codec,
// the command parser and dispatcher, the per-connection session state machine,
// passive and active data channels and the STOR/RETR/LIST/NLST transfers.
package ftp

// StatusCode is a type for FTP status codes
type StatusCode = int

const (
	// Informational codes (1xx)
	StatusDataConnectionAlreadyOpen StatusCode = 125 // Data connection already open; transfer starting
	StatusFileStatusOK              StatusCode = 150 // File status okay; about to open data connection

	// Success codes (2xx)
	StatusCommandOK                        StatusCode = 200 // Command okay
	StatusCommandNotImplementedSuperfluous StatusCode = 202 // Command not implemented, superfluous at this site
	StatusSystemStatus                     StatusCode = 211 // System status, or system help reply
	StatusFileStatus                       StatusCode = 213 // File status
	StatusNameSystemType                   StatusCode = 215 // NAME system type
	StatusServiceReadyForNewUser           StatusCode = 220 // Service ready for new user
	StatusServiceClosingControlConnection  StatusCode = 221 // Service closing control connection
	StatusClosingDataConnection            StatusCode = 226 // Closing data connection; requested file action successful
	StatusEnteringPassiveMode              StatusCode = 227 // Entering Passive Mode =h1,h2,h3,h4,p1,p2
	StatusUserLoggedIn                     StatusCode = 230 // User logged in, proceed
	StatusFileActionOK                     StatusCode = 250 // Requested file action okay, completed
	StatusPathnameCreated                  StatusCode = 257 // "PATHNAME" created

	// Positive Intermediate codes (3xx)
	StatusUserNameOK          StatusCode = 331 // User name okay, need password
	StatusNeedAccountForLogin StatusCode = 332 // Need account for login
	StatusFileActionPending   StatusCode = 350 // Requested file action pending further information

	// Transient Negative Completion codes (4xx)
	StatusServiceNotAvailable         StatusCode = 421 // Service not available, closing control connection
	StatusCantOpenDataConnection      StatusCode = 425 // Can't open data connection
	StatusRequestedFileActionNotTaken StatusCode = 450 // Requested file action not taken
	StatusLocalProcessingError        StatusCode = 451 // Requested action aborted: local error in processing

	// Permanent Negative Completion codes (5xx)
	StatusSyntaxError             StatusCode = 500 // Syntax error, command unrecognized
	StatusSyntaxErrorInParameters StatusCode = 501 // Syntax error in parameters or arguments
	StatusCommandNotImplemented   StatusCode = 502 // Command not implemented
	StatusBadSequenceOfCommands   StatusCode = 503 // Bad sequence of commands
	StatusNotLoggedIn             StatusCode = 530 // Not logged in
	StatusFileUnavailable         StatusCode = 550 // Requested action not taken; File unavailable
)

type Command = string

const (
	// Authentication and User Commands
	USER Command = "USER" // Send username
	PASS Command = "PASS" // Send password
	ACCT Command = "ACCT" // Send account information (rarely used)

	// Transfer Parameter Commands
	TYPE Command = "TYPE" // Set data transfer type (ASCII/EBCDIC/Image/Local)
	MODE Command = "MODE" // Set data transfer mode (Stream/Block/Compressed)
	STRU Command = "STRU" // Set file structure  (File/Record/Page)
	PASV Command = "PASV" // Enter passive mode
	PORT Command = "PORT" // Enter active mode

	// FTP Service Commands
	RETR Command = "RETR" // Retrieve a file
	STOR Command = "STOR" // Store a file
	APPE Command = "APPE" // Append to a file
	REST Command = "REST" // Restart an interrupted transfer
	RNFR Command = "RNFR" // Rename from (start the rename process)
	RNTO Command = "RNTO" // Rename to   (finish the rename process)
	DELE Command = "DELE" // Delete a file
	CWD  Command = "CWD"  // Change working directory
	XCWD Command = "XCWD" // Change working directory (extended version)
	CDUP Command = "CDUP" // Change to parent directory
	XCUP Command = "XCUP" // Change to parent directory (extended version)
	MKD  Command = "MKD"  // Make directory
	XMKD Command = "XMKD" // Make directory (extended version)
	RMD  Command = "RMD"  // Remove directory
	XRMD Command = "XRMD" // Remove directory (extended version)

	// Informational Commands
	PWD  Command = "PWD"  // Print working directory
	XPWD Command = "XPWD" // Print working directory (extended version)
	LIST Command = "LIST" // List directory contents
	NLST Command = "NLST" // Get concise list of filenames
	SIZE Command = "SIZE" // Get the size of a file
	SITE Command = "SITE" // Send site-specific commands (varies between servers)
	SYST Command = "SYST" // Get operating system type

	// Miscellaneous
	NOOP Command = "NOOP" // No operation (often used to keep connections alive)
	QUIT Command = "QUIT" // Disconnect from the server
)
