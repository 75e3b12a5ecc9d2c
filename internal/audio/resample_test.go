package audio

import (
	"encoding/binary"
	"testing"
)

func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestStereoToMono(t *testing.T) {
	// L=100/R=200 averages to 150; L=-100/R=100 averages to 0.
	in := pcm16(100, 200, -100, 100)
	got := StereoToMono(in)
	want := pcm16(150, 0)
	if string(got) != string(want) {
		t.Errorf("StereoToMono = %v, want %v", got, want)
	}
}

func TestStereoToMonoClamps(t *testing.T) {
	in := pcm16(32767, 32767)
	got := StereoToMono(in)
	if v := int16(binary.LittleEndian.Uint16(got)); v != 32767 {
		t.Errorf("clamped sample = %d, want 32767", v)
	}
}

func TestResampleMono16SameRate(t *testing.T) {
	in := pcm16(1, 2, 3)
	got := ResampleMono16(in, 16000, 16000)
	if string(got) != string(in) {
		t.Error("same-rate resample must return input unchanged")
	}
}

func TestResampleMono16Downsample(t *testing.T) {
	in := pcm16(0, 100, 200, 300, 400, 500, 600, 700)
	got := ResampleMono16(in, 48000, 16000)
	if len(got)/2 != len(in)/2/3 {
		t.Fatalf("got %d samples, want %d", len(got)/2, len(in)/2/3)
	}
}

func TestResampleMono16Upsample(t *testing.T) {
	in := pcm16(0, 300)
	got := ResampleMono16(in, 16000, 48000)
	if len(got)/2 != 6 {
		t.Fatalf("got %d samples, want 6", len(got)/2)
	}
	// Linear interpolation keeps the sequence monotonic for monotonic input.
	prev := int16(-1)
	for i := 0; i < len(got); i += 2 {
		v := int16(binary.LittleEndian.Uint16(got[i:]))
		if v < prev {
			t.Fatalf("sample %d decreased: %d after %d", i/2, v, prev)
		}
		prev = v
	}
}

func TestResampleMono16Degenerate(t *testing.T) {
	if got := ResampleMono16(nil, 48000, 16000); len(got) != 0 {
		t.Error("nil input must produce empty output")
	}
	in := pcm16(42)
	if got := ResampleMono16(in, 0, 16000); string(got) != string(in) {
		t.Error("invalid source rate must return input unchanged")
	}
}

func TestDecodeMP3Garbage(t *testing.T) {
	if _, err := DecodeMP3([]byte("definitely not mpeg audio"), 48000); err == nil {
		t.Fatal("expected error for non-MP3 input")
	}
}
