package lang

// Language selects which localization a room's messages use.
type Language int

const (
	English Language = iota
	French
	Portuguese
	Spanish
)

func (l Language) String() string {
	switch l {
	case French:
		return "French"
	case Portuguese:
		return "Portuguese"
	case Spanish:
		return "Spanish"
	default:
		return "English"
	}
}
