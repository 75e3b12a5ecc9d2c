package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 decodes MP3 data into 16-bit mono PCM at targetRate. The decoder
// always yields interleaved stereo at the file's native rate; the result is
// downmixed and resampled as needed.
func DecodeMP3(data []byte, targetRate int) ([]byte, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("audio: decode mp3: %w", err)
	}

	stereo, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("audio: read mp3 samples: %w", err)
	}

	mono := StereoToMono(stereo)
	return ResampleMono16(mono, dec.SampleRate(), targetRate), nil
}
