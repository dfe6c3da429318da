package speech

import (
	"regexp"
	"strings"
)

// envAnnotation matches environmental annotations like "(keyboard
// clicking)", "[laughter]" or "(speaking French)".
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z_\s]*[\)\]]`)

// timestampPrefix matches "[00:00:00.000 --> 00:00:05.000]".
var timestampPrefix = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\.\d{3} --> \d{2}:\d{2}:\d{2}\.\d{3}\]\s*`)

var whitespace = regexp.MustCompile(`\s+`)

// Utterances whisper invents on silent input. Matched against the whole
// cleaned transcript, case-insensitively.
var hallucinations = []string{
	"...",
	"you",
	"thank you.",
	"thanks for watching!",
	"thank you for watching.",
	"bye.",
	"bye!",
	"the end.",
	"ご視聴ありがとうございました",
	"ご視聴ありがとうございました。",
	"お疲れ様でした。",
	"sous-titres réalisés para la communauté d'amara.org",
}

// cleanTranscript removes recognizer artefacts and returns "" when nothing
// meaningful is left.
func cleanTranscript(s string) string {
	s = timestampPrefix.ReplaceAllString(strings.TrimSpace(s), "")
	s = envAnnotation.ReplaceAllString(s, "")
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))

	lower := strings.ToLower(s)
	for _, h := range hallucinations {
		if lower == h {
			return ""
		}
	}
	if strings.Trim(s, " .,!?、。") == "" {
		return ""
	}
	return s
}
