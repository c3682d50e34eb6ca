// Package audio holds the small amount of signal plumbing the service
// needs: PCM16 WAV encode/decode, naive resampling, and RMS energy.
// Samples are mono float32 in [-1, 1] everywhere above this package.
package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// EncodeWAV wraps mono float32 samples in a PCM16LE WAV container.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteWAVTo(&buf, samples, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVFile writes mono float32 samples as a PCM16LE WAV file.
func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteWAVTo(f, samples, sampleRate)
}

// WriteWAVTo writes mono float32 samples to out as a PCM16LE WAV stream.
func WriteWAVTo(out io.Writer, samples []float32, sampleRate int) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	dataSize := uint32(len(samples) * 2)
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	w := bufio.NewWriter(out)

	// RIFF header.
	if _, err := w.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36)+dataSize); err != nil {
		return err
	}
	if _, err := w.WriteString("WAVE"); err != nil {
		return err
	}

	// fmt chunk.
	if _, err := w.WriteString("fmt "); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(audioFormat)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(numChannels)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, byteRate); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, blockAlign); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(bitsPerSample)); err != nil {
		return err
	}

	// data chunk.
	if _, err := w.WriteString("data"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	for _, s := range samples {
		if err := binary.Write(w, binary.LittleEndian, pcm16(s)); err != nil {
			return err
		}
	}
	return w.Flush()
}

func pcm16(s float32) int16 {
	v := float64(s)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(math.Round(v * 32767))
}

// DecodeWAVFile reads a PCM16LE WAV file and returns mono float32 samples
// and the sample rate. Multi-channel input is downmixed by averaging.
func DecodeWAVFile(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV reads a PCM16LE WAV stream.
func DecodeWAV(r io.Reader) ([]float32, int, error) {
	br := bufio.NewReader(r)

	var riff [12]byte
	if _, err := io.ReadFull(br, riff[:]); err != nil {
		return nil, 0, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var (
		sampleRate    int
		numChannels   int
		bitsPerSample int
		haveFmt       bool
	)

	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(br, chunkHdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, 0, fmt.Errorf("no data chunk found")
			}
			return nil, 0, err
		}
		chunkID := string(chunkHdr[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHdr[4:8])

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too small: %d", chunkSize)
			}
			fmtBody := make([]byte, chunkSize)
			if _, err := io.ReadFull(br, fmtBody); err != nil {
				return nil, 0, fmt.Errorf("read fmt chunk: %w", err)
			}
			audioFormat := binary.LittleEndian.Uint16(fmtBody[0:2])
			if audioFormat != 1 {
				return nil, 0, fmt.Errorf("unsupported WAV format code %d (PCM only)", audioFormat)
			}
			numChannels = int(binary.LittleEndian.Uint16(fmtBody[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(fmtBody[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(fmtBody[14:16]))
			if numChannels <= 0 || sampleRate <= 0 {
				return nil, 0, fmt.Errorf("invalid fmt chunk: channels=%d rate=%d", numChannels, sampleRate)
			}
			if bitsPerSample != 16 {
				return nil, 0, fmt.Errorf("unsupported bit depth %d (16-bit PCM only)", bitsPerSample)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			data := make([]byte, chunkSize)
			if _, err := io.ReadFull(br, data); err != nil {
				return nil, 0, fmt.Errorf("read data chunk: %w", err)
			}
			frameSize := 2 * numChannels
			frames := len(data) / frameSize
			samples := make([]float32, frames)
			for i := 0; i < frames; i++ {
				var sum float64
				for c := 0; c < numChannels; c++ {
					off := i*frameSize + c*2
					v := int16(binary.LittleEndian.Uint16(data[off : off+2]))
					sum += float64(v) / 32768
				}
				samples[i] = float32(sum / float64(numChannels))
			}
			return samples, sampleRate, nil
		default:
			// Skip unknown chunks (LIST, fact, ...). Chunks are word aligned.
			skip := int64(chunkSize)
			if chunkSize%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, br, skip); err != nil {
				return nil, 0, fmt.Errorf("skip %q chunk: %w", chunkID, err)
			}
		}
	}
}
