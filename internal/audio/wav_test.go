package audio

import (
	"bytes"
	"math"
	"testing"
)

func sine(freq float64, seconds float64, rate int, amp float64) []float32 {
	n := int(seconds * float64(rate))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sine(440, 0.25, 16000, 0.5)

	wav, err := EncodeWAV(in, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}

	out, rate, err := DecodeWAV(bytes.NewReader(wav))
	if err != nil {
		t.Fatalf("DecodeWAV() error = %v", err)
	}
	if rate != 16000 {
		t.Fatalf("rate = %d, want 16000", rate)
	}
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if diff := math.Abs(float64(out[i] - in[i])); diff > 1.0/32000 {
			t.Fatalf("sample %d = %v, want %v (diff %v)", i, out[i], in[i], diff)
		}
	}
}

func TestDecodeRejectsNonWAV(t *testing.T) {
	if _, _, err := DecodeWAV(bytes.NewReader([]byte("definitely not audio data"))); err == nil {
		t.Fatalf("DecodeWAV(garbage) error = nil, want error")
	}
}

func TestResampleHalvesLength(t *testing.T) {
	in := sine(440, 1.0, 48000, 0.5)
	out := Resample(in, 48000, 24000)
	want := len(in) / 2
	if len(out) < want-1 || len(out) > want+1 {
		t.Fatalf("len(out) = %d, want about %d", len(out), want)
	}
}

func TestResampleSameRateCopies(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	out[0] = 0.9
	if in[0] != 0.1 {
		t.Fatalf("Resample aliased its input")
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v, want 0", got)
	}
	// A full-scale sine has RMS 1/sqrt(2).
	got := RMS(sine(440, 1.0, 16000, 1.0))
	if math.Abs(got-1/math.Sqrt2) > 0.01 {
		t.Fatalf("RMS(sine) = %v, want about %v", got, 1/math.Sqrt2)
	}
}
