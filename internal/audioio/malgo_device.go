package audioio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/lokutor-ai/voiceassistant/internal/obslog"
)

// MalgoDevice is the Port implementation backed by a duplex malgo device.
// Generalized from the teacher's cmd/agent/main.go, which built an
// equivalent capture/playback callback inline in main() rather than as a
// reusable type.
type MalgoDevice struct {
	logger obslog.Logger

	mctx   *malgo.AllocatedContext
	device *malgo.Device

	mu           sync.Mutex
	playbackBuf  []byte
	playing      bool
	stopRequest  chan struct{}
	captureSubs  []chan Frame
	closed       bool
}

// NewMalgoDevice initializes the malgo context and opens a duplex device at
// SampleRate, mono, 16-bit.
func NewMalgoDevice(logger obslog.Logger) (*MalgoDevice, error) {
	logger = obslog.Default(logger)

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init malgo context: %v", ErrDeviceUnavailable, err)
	}

	d := &MalgoDevice{logger: logger, mctx: mctx}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = SampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: d.onSamples,
	})
	if err != nil {
		mctx.Uninit()
		return nil, fmt.Errorf("%w: init device: %v", ErrDeviceUnavailable, err)
	}
	d.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, fmt.Errorf("%w: start device: %v", ErrDeviceUnavailable, err)
	}

	return d, nil
}

func (d *MalgoDevice) onSamples(pOutput, pInput []byte, frameCount uint32) {
	if pInput != nil {
		d.mu.Lock()
		subs := append([]chan Frame(nil), d.captureSubs...)
		d.mu.Unlock()

		frame := make(Frame, len(pInput))
		copy(frame, pInput)
		for _, ch := range subs {
			select {
			case ch <- frame:
			default:
				// slow consumer; drop rather than block the audio thread
			}
		}
	}

	if pOutput != nil {
		d.mu.Lock()
		n := copy(pOutput, d.playbackBuf)
		d.playbackBuf = d.playbackBuf[n:]
		if len(d.playbackBuf) == 0 {
			d.playing = false
		}
		d.mu.Unlock()
		for i := n; i < len(pOutput); i++ {
			pOutput[i] = 0
		}
	}
}

// deviceStream implements ChunkStream over a subscription channel fed by
// the duplex device's capture callback.
type deviceStream struct {
	d        *MalgoDevice
	ch       chan Frame
	chunkLen int
	buf      []byte
	closeOnce sync.Once
}

func (d *MalgoDevice) Stream(ctx context.Context, chunkMS time.Duration) (ChunkStream, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDeviceUnavailable
	}
	ch := make(chan Frame, 64)
	d.captureSubs = append(d.captureSubs, ch)
	d.mu.Unlock()

	return &deviceStream{d: d, ch: ch, chunkLen: FrameSize(chunkMS)}, nil
}

func (s *deviceStream) Next(ctx context.Context) (Frame, error) {
	for len(s.buf) < s.chunkLen {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case f, ok := <-s.ch:
			if !ok {
				return nil, io.EOF
			}
			s.buf = append(s.buf, f...)
		}
	}
	out := make(Frame, s.chunkLen)
	copy(out, s.buf[:s.chunkLen])
	s.buf = s.buf[s.chunkLen:]
	return out, nil
}

func (s *deviceStream) Close() error {
	s.closeOnce.Do(func() {
		s.d.mu.Lock()
		defer s.d.mu.Unlock()
		for i, c := range s.d.captureSubs {
			if c == s.ch {
				s.d.captureSubs = append(s.d.captureSubs[:i], s.d.captureSubs[i+1:]...)
				break
			}
		}
		close(s.ch)
	})
	return nil
}

func (d *MalgoDevice) Record(ctx context.Context, duration time.Duration) (Frame, error) {
	stream, err := d.Stream(ctx, duration)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	return stream.Next(ctx)
}

func (d *MalgoDevice) Play(ctx context.Context, pcm Frame) error {
	if err := d.PlayAsync(pcm); err != nil {
		return err
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.StopPlayback()
			return ctx.Err()
		case <-ticker.C:
			if !d.IsPlaying() {
				return nil
			}
		}
	}
}

func (d *MalgoDevice) PlayAsync(pcm Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceUnavailable
	}
	d.playbackBuf = append([]byte(nil), pcm...)
	d.playing = true
	return nil
}

func (d *MalgoDevice) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func (d *MalgoDevice) StopPlayback() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playbackBuf = nil
	d.playing = false
	if d.stopRequest != nil {
		close(d.stopRequest)
		d.stopRequest = nil
	}
	return nil
}

func (d *MalgoDevice) PlayStreamed(ctx context.Context, chunks ChunkStream) error {
	defer chunks.Close()
	stop := make(chan struct{})
	d.mu.Lock()
	d.stopRequest = stop
	d.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			d.StopPlayback()
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		frame, err := chunks.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return ErrDeviceUnavailable
		}
		if d.stopRequest != stop {
			d.mu.Unlock()
			return nil
		}
		d.playbackBuf = append(d.playbackBuf, frame...)
		d.playing = true
		d.mu.Unlock()
	}
	return nil
}

func (d *MalgoDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	if d.device != nil {
		d.device.Uninit()
	}
	if d.mctx != nil {
		d.mctx.Uninit()
	}
	return nil
}
