package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
	"github.com/hammamikhairi/ottonav/internal/playback"
)

// pcmPlayer is the subset of *oto.Player a handle drives.
type pcmPlayer interface {
	Play()
	Pause()
	IsPlaying() bool
	Err() error
	Close() error
}

// OtoEngine plays narration through the system audio device. Audio comes
// from a NarrationSource, so narration text is synthesized (or read from
// the cache) on Load.
type OtoEngine struct {
	source    *NarrationSource
	log       *logger.Logger
	newPlayer func(r io.Reader) pcmPlayer
	poll      time.Duration
}

var (
	_ domain.AudioEngine  = (*OtoEngine)(nil)
	_ playback.Prefetcher = (*OtoEngine)(nil)
)

// NewOtoEngine opens the audio device. oto allows one context per process,
// so call it once.
func NewOtoEngine(source *NarrationSource, log *logger.Logger) (*OtoEngine, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("audio device: %w", err)
	}
	<-ready

	log.Debug("oto: audio initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return newOtoEngine(source, func(r io.Reader) pcmPlayer { return ctx.NewPlayer(r) }, log), nil
}

func newOtoEngine(source *NarrationSource, newPlayer func(io.Reader) pcmPlayer, log *logger.Logger) *OtoEngine {
	return &OtoEngine{
		source:    source,
		log:       log.Named("oto"),
		newPlayer: newPlayer,
		poll:      10 * time.Millisecond,
	}
}

// Supported reports whether an output device was opened.
func (e *OtoEngine) Supported() bool { return e.newPlayer != nil }

// Load fetches the audio for ref and prepares a handle. Nothing plays
// until the handle's Play.
func (e *OtoEngine) Load(ctx context.Context, ref domain.AudioRef) (domain.AudioHandle, error) {
	wav, err := e.source.Audio(ctx, ref)
	if err != nil {
		return nil, err
	}
	pcm, err := extractPCM(wav)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref.ID, err)
	}
	e.log.Debug("loaded %s (%d bytes of PCM)", ref.ID, len(pcm))
	return &otoHandle{
		player: e.newPlayer(bytes.NewReader(pcm)),
		poll:   e.poll,
		log:    e.log,
	}, nil
}

// Prefetch warms the narration cache for ref in the background.
func (e *OtoEngine) Prefetch(ctx context.Context, ref domain.AudioRef) {
	if ref.Path != "" || ref.Text == "" {
		return
	}
	go func() {
		if _, err := e.source.Audio(ctx, ref); err != nil {
			e.log.Debug("prefetch %s: %v", ref.ID, err)
		}
	}()
}

// ── Handle ──────────────────────────────────────────────────────

type otoHandle struct {
	player pcmPlayer
	poll   time.Duration
	log    *logger.Logger

	mu       sync.Mutex
	listener domain.AudioListener
	playing  bool
	closed   bool
	stop     chan struct{}
}

func (h *otoHandle) SetListener(l domain.AudioListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = l
}

// Play starts or resumes output. The first call starts the monitor that
// reports the natural end.
func (h *otoHandle) Play() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errors.New("audio handle closed")
	}
	h.player.Play()
	h.playing = true
	if h.stop == nil {
		h.stop = make(chan struct{})
		go h.monitor(h.stop)
	}
	l := h.listener
	started := h.player.IsPlaying()
	h.mu.Unlock()

	if started && l != nil {
		l.OnPlaying()
	}
	return nil
}

func (h *otoHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.playing = false
	h.player.Pause()
}

func (h *otoHandle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.playing = false
	if h.stop != nil {
		close(h.stop)
	}
	h.mu.Unlock()

	if err := h.player.Close(); err != nil {
		h.log.Debug("close: %v", err)
	}
}

func (h *otoHandle) monitor(stop chan struct{}) {
	t := time.NewTicker(h.poll)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}

		h.mu.Lock()
		if h.closed || !h.playing || h.player.IsPlaying() {
			h.mu.Unlock()
			continue
		}
		h.playing = false
		err := h.player.Err()
		l := h.listener
		h.mu.Unlock()

		if l == nil {
			continue
		}
		if err != nil {
			l.OnError(err)
		} else {
			l.OnEnded()
		}
		return
	}
}

// ── WAV ─────────────────────────────────────────────────────────

// extractPCM validates a RIFF/WAVE file against the output format and
// returns its raw PCM data.
func extractPCM(wav []byte) ([]byte, error) {
	if len(wav) < 12 {
		return nil, errors.New("wav data too short")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a valid WAV file")
	}

	pos := 12
	for pos+8 <= len(wav) {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		start := pos + 8

		switch chunkID {
		case "fmt ":
			if start+16 > len(wav) {
				return nil, errors.New("truncated fmt chunk")
			}
			if err := checkFormat(wav[start : start+16]); err != nil {
				return nil, err
			}
		case "data":
			end := start + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			return wav[start:end], nil
		}

		pos = start + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, errors.New("data chunk not found in WAV")
}

func checkFormat(fmtChunk []byte) error {
	channels := int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
	rate := int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
	bits := int(binary.LittleEndian.Uint16(fmtChunk[14:16]))
	if channels != ChannelCount || rate != SampleRate || bits != BitDepth {
		return fmt.Errorf("unsupported wav format %dHz/%d-bit/%dch, want %dHz/%d-bit/%dch",
			rate, bits, channels, SampleRate, BitDepth, ChannelCount)
	}
	return nil
}
