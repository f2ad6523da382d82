package transcription

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/youpy/go-wav"
)

// WAVDuration reads the duration of a PCM WAV file from its header
func WAVDuration(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open wav: %w", err)
	}
	defer file.Close()

	d, err := wav.NewReader(file).Duration()
	if err != nil {
		return 0, fmt.Errorf("failed to read wav duration: %w", err)
	}
	return d.Seconds(), nil
}

// frameEnergy is the RMS of consecutive fixed-length frames of a recording
type frameEnergy struct {
	rms      []float64
	frameSec float64
	duration float64

	frameLen int
	sum      float64
	n        int
	samples  int
	rate     int
}

func newFrameEnergy(rate, frameMs int) *frameEnergy {
	frameLen := max(rate*frameMs/1000, 1)
	return &frameEnergy{
		frameLen: frameLen,
		frameSec: float64(frameLen) / float64(rate),
		rate:     rate,
	}
}

// add feeds one sample normalized to [-1, 1]
func (f *frameEnergy) add(v float64) {
	f.sum += v * v
	f.n++
	f.samples++
	if f.n == f.frameLen {
		f.flush()
	}
}

func (f *frameEnergy) flush() {
	if f.n > 0 {
		f.rms = append(f.rms, math.Sqrt(f.sum/float64(f.n)))
		f.sum, f.n = 0, 0
	}
	f.duration = float64(f.samples) / float64(f.rate)
}

// readFrameEnergy streams the first channel of a PCM WAV and keeps only
// per-frame RMS, so memory grows with frames rather than samples.
func readFrameEnergy(ctx context.Context, path string, frameMs int) (*frameEnergy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav: %w", err)
	}
	defer file.Close()

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav format: %w", err)
	}
	if format.SampleRate == 0 || format.BitsPerSample == 0 {
		return nil, fmt.Errorf("invalid wav format: %d Hz, %d bits", format.SampleRate, format.BitsPerSample)
	}

	scale := float64(int64(1) << (format.BitsPerSample - 1))
	frames := newFrameEnergy(int(format.SampleRate), frameMs)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		samples, err := reader.ReadSamples(4096)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read wav samples: %w", err)
		}
		for _, s := range samples {
			v := float64(s.Values[0])
			if format.BitsPerSample == 8 {
				v -= 128 // 8-bit PCM is unsigned
			}
			frames.add(v / scale)
		}
	}
	frames.flush()
	return frames, nil
}
