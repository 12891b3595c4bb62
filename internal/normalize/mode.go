package normalize

import "webinfinitygen/internal/model"

// Mode selects which extraction rules apply to an upstream payload.
type Mode int

const (
	ModeTextImage Mode = iota
	ModeGameCode
	ModeTextOnly
)

func (m Mode) String() string {
	switch m {
	case ModeGameCode:
		return "game_code"
	case ModeTextOnly:
		return "text_only"
	default:
		return "text_image"
	}
}

const (
	DefaultTextImage  = "Generated successfully."
	DefaultGameCode   = "Game generated successfully!"
	DefaultTextOnly   = "No response from the AI."
	SafetyBlockedText = "Content was blocked by the safety filter."
)

func (m Mode) defaultText() string {
	switch m {
	case ModeGameCode:
		return DefaultGameCode
	case ModeTextOnly:
		return DefaultTextOnly
	default:
		return DefaultTextImage
	}
}

// ModeFor maps a chat type to the ruleset its workflow responses need.
func ModeFor(chatType model.ChatType) Mode {
	switch chatType {
	case model.ChatTypeCreateGame:
		return ModeGameCode
	case model.ChatTypeFileToText:
		return ModeTextOnly
	default:
		return ModeTextImage
	}
}
