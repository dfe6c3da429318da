package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	vosk "github.com/alphacep/vosk-api/go"
	"github.com/gordonklaus/portaudio"
	"github.com/tidwall/gjson"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

// errSilence is reported with domain.ErrorNoSpeech when a run hears nothing.
var errSilence = errors.New("no speech before silence timeout")

// sampleSource delivers mono 16-bit samples. Read blocks until buf is full.
type sampleSource interface {
	Read(buf []int16) error
	Close()
}

// decoder is the streaming recognizer behind a VoskRecognizer.
type decoder interface {
	Accept(pcm []byte) bool // true when an utterance is complete
	Result() string         // JSON {"text": ...}
	Partial() string        // JSON {"partial": ...}
	Final() string          // JSON {"text": ...}, flushes pending audio
	Reset()
	Free()
}

// VoskOption configures a VoskRecognizer.
type VoskOption func(*VoskRecognizer)

// WithSilenceTimeout sets how long a run may go without speech before the
// engine ends it. The recognition session restarts it.
func WithSilenceTimeout(d time.Duration) VoskOption {
	return func(v *VoskRecognizer) { v.silenceTimeout = d }
}

// VoskRecognizer is a continuous recognizer: PortAudio microphone capture
// streamed into a Vosk model, with interim and final results.
type VoskRecognizer struct {
	log            *logger.Logger
	silenceTimeout time.Duration
	frames         int

	openSource func() (sampleSource, error)
	newDecoder func() (decoder, error)
	release    func()

	mu       sync.Mutex
	listener domain.RecognitionListener
	paused   bool
	cancel   context.CancelFunc
	done     chan struct{}
}

var (
	_ domain.RecognitionEngine = (*VoskRecognizer)(nil)
	_ domain.PausableEngine    = (*VoskRecognizer)(nil)
)

// NewVoskRecognizer loads the model at modelPath and initializes PortAudio.
// Close releases both.
func NewVoskRecognizer(modelPath string, log *logger.Logger, opts ...VoskOption) (*VoskRecognizer, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("vosk model %s: %w", modelPath, err)
	}
	vosk.SetLogLevel(-1)
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading vosk model: %w", err)
	}
	if err := portaudio.Initialize(); err != nil {
		model.Free()
		return nil, fmt.Errorf("portaudio: %w", err)
	}

	v := newVosk(
		func() (sampleSource, error) { return openMicrophone(CaptureRate, FramesPerBuffer) },
		func() (decoder, error) {
			rec, err := vosk.NewRecognizer(model, CaptureRate)
			if err != nil {
				return nil, err
			}
			return &voskDecoder{rec: rec}, nil
		},
		log, opts...)
	v.release = func() {
		model.Free()
		portaudio.Terminate()
	}
	log.Info("vosk: model loaded from %s", modelPath)
	return v, nil
}

func newVosk(open func() (sampleSource, error), dec func() (decoder, error), log *logger.Logger, opts ...VoskOption) *VoskRecognizer {
	v := &VoskRecognizer{
		log:            log.Named("vosk"),
		silenceTimeout: 8 * time.Second,
		frames:         FramesPerBuffer,
		openSource:     open,
		newDecoder:     dec,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Supported reports whether the model and audio backend are available.
func (v *VoskRecognizer) Supported() bool {
	return v.openSource != nil && v.newDecoder != nil
}

// SetListener sets the callback target. nil detaches.
func (v *VoskRecognizer) SetListener(l domain.RecognitionListener) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listener = l
}

// Start opens the microphone and begins a run. A run ends on its own after
// the silence timeout, reporting OnEnd.
func (v *VoskRecognizer) Start(cfg domain.RecognitionConfig) error {
	v.waitPrevious()

	src, err := v.openSource()
	if err != nil {
		return fmt.Errorf("opening microphone: %w", err)
	}
	dec, err := v.newDecoder()
	if err != nil {
		src.Close()
		return fmt.Errorf("creating recognizer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	v.mu.Lock()
	v.cancel = cancel
	v.done = done
	v.mu.Unlock()

	go v.run(ctx, done, src, dec, cfg.InterimResults)
	return nil
}

// Stop ends the current run and waits for it to release the microphone.
func (v *VoskRecognizer) Stop() {
	v.mu.Lock()
	cancel := v.cancel
	v.cancel = nil
	v.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	v.waitPrevious()
}

// Pause discards captured audio until Resume.
func (v *VoskRecognizer) Pause() {
	v.mu.Lock()
	v.paused = true
	v.mu.Unlock()
	v.log.Debug("muted")
}

// Resume continues recognition after Pause.
func (v *VoskRecognizer) Resume() {
	v.mu.Lock()
	v.paused = false
	v.mu.Unlock()
	v.log.Debug("unmuted")
}

// Close stops recognition and frees the model.
func (v *VoskRecognizer) Close() {
	v.Stop()
	if v.release != nil {
		v.release()
		v.release = nil
	}
}

func (v *VoskRecognizer) waitPrevious() {
	v.mu.Lock()
	done := v.done
	v.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (v *VoskRecognizer) current() (domain.RecognitionListener, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.listener, v.paused
}

// ── Run loop ────────────────────────────────────────────────────

func (v *VoskRecognizer) run(ctx context.Context, done chan struct{}, src sampleSource, dec decoder, interim bool) {
	defer close(done)
	defer dec.Free()
	defer src.Close()

	if l, _ := v.current(); l != nil {
		l.OnStart()
	}

	buf := make([]int16, v.frames)
	pcm := make([]byte, len(buf)*2)
	lastSpeech := time.Now()
	heard := false
	lastPartial := ""
	wasPaused := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := src.Read(buf); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			if l, _ := v.current(); l != nil {
				l.OnError(domain.ErrorAudioCapture, err)
				l.OnEnd()
			}
			return
		}

		l, paused := v.current()
		if paused {
			// Drop anything the decoder picked up from the narration.
			if !wasPaused {
				dec.Reset()
				lastPartial = ""
			}
			wasPaused = true
			lastSpeech = time.Now()
			continue
		}
		wasPaused = false

		for i, s := range buf {
			binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
		}

		if dec.Accept(pcm) {
			lastPartial = ""
			if text := cleanTranscript(gjson.Get(dec.Result(), "text").String()); text != "" {
				heard = true
				lastSpeech = time.Now()
				if l != nil {
					l.OnResult(text, true)
				}
			}
		} else if interim {
			p := cleanTranscript(gjson.Get(dec.Partial(), "partial").String())
			if p != "" && p != lastPartial {
				lastPartial = p
				lastSpeech = time.Now()
				if l != nil {
					l.OnResult(p, false)
				}
			}
		}

		if time.Since(lastSpeech) >= v.silenceTimeout {
			if text := cleanTranscript(gjson.Get(dec.Final(), "text").String()); text != "" {
				heard = true
				if l != nil {
					l.OnResult(text, true)
				}
			}
			if l != nil {
				if !heard {
					l.OnError(domain.ErrorNoSpeech, errSilence)
				}
				l.OnEnd()
			}
			v.log.Debug("run ended after %s of silence", v.silenceTimeout)
			return
		}
	}
}

// ── Backends ────────────────────────────────────────────────────

type voskDecoder struct {
	rec *vosk.VoskRecognizer
}

func (d *voskDecoder) Accept(pcm []byte) bool { return d.rec.AcceptWaveform(pcm) != 0 }
func (d *voskDecoder) Result() string         { return d.rec.Result() }
func (d *voskDecoder) Partial() string        { return d.rec.PartialResult() }
func (d *voskDecoder) Final() string          { return d.rec.FinalResult() }
func (d *voskDecoder) Reset()                 { d.rec.Reset() }
func (d *voskDecoder) Free()                  { d.rec.Free() }

// microphone is a blocking PortAudio input stream.
type microphone struct {
	stream *portaudio.Stream
	buf    []int16
}

func openMicrophone(rate float64, frames int) (*microphone, error) {
	m := &microphone{buf: make([]int16, frames)}
	stream, err := portaudio.OpenDefaultStream(1, 0, rate, frames, m.buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	m.stream = stream
	return m, nil
}

func (m *microphone) Read(buf []int16) error {
	if err := m.stream.Read(); err != nil {
		return err
	}
	copy(buf, m.buf)
	return nil
}

func (m *microphone) Close() {
	m.stream.Stop()
	m.stream.Close()
}
