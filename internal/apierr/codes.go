package apierr

// Stable error codes used for classification lookups and log correlation.
// Codes are fixed keys, never derived from free-form error text.
const (
	CodeValidation     = "VAL_001"
	CodeAuthRequired   = "AUTH_001"
	CodeSessionExpired = "AUTH_002"
	CodeForbidden      = "AUTHZ_001"
	CodeNotFound       = "RES_001"
	CodeRateLimited    = "RATE_001"
	CodeServerError    = "SRV_001"
	CodeDatabase       = "DB_001"
	CodeExternal       = "EXT_001"
	CodeNetwork        = "NET_001"
	CodeTimeout        = "NET_002"
	CodeBusinessRule   = "BIZ_001"
	CodeConfiguration  = "CFG_001"
	CodeUnknown        = "UNK_001"
)

// userMessages maps codes to the message shown to a human when the call
// site does not supply one. Lookup falls back to genericUserMessage.
var userMessages = map[string]string{
	CodeValidation:     "Some of the information provided is invalid. Please review and try again.",
	CodeAuthRequired:   "Please sign in to continue.",
	CodeSessionExpired: "Your session has expired. Please sign in again.",
	CodeForbidden:      "You do not have permission to perform this action.",
	CodeNotFound:       "The requested record could not be found.",
	CodeRateLimited:    "Too many requests. Please wait a moment and try again.",
	CodeServerError:    "The server encountered a problem. Please try again shortly.",
	CodeDatabase:       "A data storage problem occurred. Please try again shortly.",
	CodeExternal:       "An external service is currently unavailable. Please try again later.",
	CodeNetwork:        "A network problem occurred. Please check your connection and try again.",
	CodeTimeout:        "The request took too long to complete. Please try again.",
	CodeBusinessRule:   "This action cannot be completed as requested.",
	CodeConfiguration:  "The application is misconfigured. Please contact support.",
}

const genericUserMessage = "Something went wrong. Please try again."

// UserMessageFor returns the default user-facing message for a code.
func UserMessageFor(code string) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return genericUserMessage
}
