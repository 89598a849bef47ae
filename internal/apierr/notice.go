package apierr

// Action is the follow-up a presentation layer should offer with a notice.
type Action string

const (
	ActionNone            Action = ""
	ActionCheckConnection Action = "check_connection"
	ActionSignIn          Action = "sign_in"
)

// Notice is the toast-level rendering of an ErrorResponse.
type Notice struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Action Action `json:"action,omitempty"`
	Queued bool   `json:"queued,omitempty"`
}

// NoticeFor derives the user-visible notice. Technical messages never reach it.
func NoticeFor(e *ErrorResponse) Notice {
	if e == nil {
		return Notice{}
	}
	switch e.Type {
	case TypeNetwork:
		if e.QueueID != "" {
			return Notice{Title: "Saved offline", Body: e.UserMessage, Queued: true}
		}
		return Notice{Title: "Connection problem", Body: e.UserMessage, Action: ActionCheckConnection}
	case TypeAuthentication:
		return Notice{Title: "Signed out", Body: e.UserMessage, Action: ActionSignIn}
	case TypeAuthorization:
		return Notice{Title: "Not allowed", Body: e.UserMessage}
	case TypeValidation:
		return Notice{Title: "Check your input", Body: e.UserMessage}
	case TypeNotFound:
		return Notice{Title: "Not found", Body: e.UserMessage}
	case TypeServer:
		return Notice{Title: "Server error", Body: e.UserMessage}
	default:
		return Notice{Title: "Error", Body: e.UserMessage}
	}
}
