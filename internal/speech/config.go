// Package speech holds the engine adapters behind the recognition and
// playback ports: Vosk and Whisper recognizers, an oto audio engine, and
// Azure TTS with a narration cache.
package speech

// Default voice and locale for synthesized narration.
// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
const (
	DefaultVoice  = "ja-JP-NanamiNeural"
	DefaultLocale = "ja-JP"
)

// Audio format returned by Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Playback parameters matching the default format.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// Capture parameters for the microphone. Vosk models expect 16 kHz mono.
const (
	CaptureRate     = 16000
	FramesPerBuffer = 1024
)
