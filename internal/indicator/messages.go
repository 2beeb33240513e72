package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeSpanish locale = "es"
)

type messages struct {
	recording string
	elapsed   string
	done      string
	errorText string
}

func indicatorMessagesFromEnv() messages {
	raw := os.Getenv("LC_ALL")
	if strings.TrimSpace(raw) == "" {
		raw = os.Getenv("LANG")
	}
	return indicatorMessages(resolveLocale(raw))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "es") {
		return localeSpanish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeSpanish:
		return messages{
			recording: "Grabando",
			elapsed:   "Tiempo",
			done:      "Transcripción lista",
			errorText: "Error de reconocimiento",
		}
	case localeEnglish:
		fallthrough
	default:
		return messages{
			recording: "Recording",
			elapsed:   "Time",
			done:      "Transcript ready",
			errorText: "Speech recognition error",
		}
	}
}
