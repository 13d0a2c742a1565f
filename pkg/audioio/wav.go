package audioio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// WAVInfo describes a decoded WAV file.
type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Format        uint16
}

// ReadWAVFile decodes the WAV file at path into interleaved PCM16 samples.
func ReadWAVFile(path string) (AudioChunk, WAVInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AudioChunk{}, WAVInfo{}, fmt.Errorf("%w: %w", ErrInvalidAudio, err)
	}
	return DecodeWAV(data)
}

// DecodeWAV decodes a RIFF/WAVE byte slice. 16-bit PCM and 32-bit float
// payloads are accepted; float samples are converted to PCM16.
func DecodeWAV(data []byte) (AudioChunk, WAVInfo, error) {
	var info WAVInfo

	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return AudioChunk{}, info, fmt.Errorf("%w: not a RIFF/WAVE file", ErrInvalidAudio)
	}

	var (
		haveFmt bool
		payload []byte
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// Writers that stream often leave the data size unset.
			if id == "data" {
				end = len(data)
			} else {
				return AudioChunk{}, info, fmt.Errorf("%w: truncated %q chunk", ErrInvalidAudio, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return AudioChunk{}, info, fmt.Errorf("%w: fmt chunk too small: %d bytes", ErrInvalidAudio, size)
			}
			f := data[body:end]
			info.Format = binary.LittleEndian.Uint16(f[0:2])
			info.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(f[14:16]))
			if info.Format == wavFormatExtensible && size >= 26 {
				info.Format = binary.LittleEndian.Uint16(f[24:26])
			}
			haveFmt = true
		case "data":
			payload = data[body:end]
		}

		pos = end + size%2
		if payload != nil && haveFmt {
			break
		}
	}

	if !haveFmt {
		return AudioChunk{}, info, fmt.Errorf("%w: missing fmt chunk", ErrInvalidAudio)
	}
	if payload == nil {
		return AudioChunk{}, info, fmt.Errorf("%w: missing data chunk", ErrInvalidAudio)
	}
	if info.Channels < 1 || info.SampleRate <= 0 {
		return AudioChunk{}, info, fmt.Errorf("%w: bad format %d ch @ %d Hz", ErrInvalidAudio, info.Channels, info.SampleRate)
	}

	var samples []int16
	switch {
	case info.Format == wavFormatPCM && info.BitsPerSample == 16:
		samples = BytesToSamples(payload)
	case info.Format == wavFormatFloat && info.BitsPerSample == 32:
		samples = make([]int16, len(payload)/4)
		for i := range samples {
			f := math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
			samples[i] = clamp16(float64(f) * 32767)
		}
	default:
		return AudioChunk{}, info, fmt.Errorf("%w: unsupported encoding format=%d bits=%d",
			ErrInvalidAudio, info.Format, info.BitsPerSample)
	}

	return AudioChunk{Samples: samples, SampleRate: info.SampleRate, Channels: info.Channels}, info, nil
}

// EncodeWAV writes chunk as a 16-bit PCM WAV stream.
func EncodeWAV(w io.Writer, chunk AudioChunk) error {
	dataSize := uint32(len(chunk.Samples) * 2)
	blockAlign := uint16(chunk.Channels * 2)
	byteRate := uint32(chunk.SampleRate) * uint32(blockAlign)

	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	_ = binary.Write(&hdr, binary.LittleEndian, 36+dataSize)
	hdr.WriteString("WAVE")
	hdr.WriteString("fmt ")
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(16))
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(wavFormatPCM))
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(chunk.Channels))
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(chunk.SampleRate))
	_ = binary.Write(&hdr, binary.LittleEndian, byteRate)
	_ = binary.Write(&hdr, binary.LittleEndian, blockAlign)
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(16))
	hdr.WriteString("data")
	_ = binary.Write(&hdr, binary.LittleEndian, dataSize)

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(chunk.Bytes()); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// WAVBytes returns chunk encoded as a WAV file.
func WAVBytes(chunk AudioChunk) []byte {
	var buf bytes.Buffer
	_ = EncodeWAV(&buf, chunk)
	return buf.Bytes()
}

// WriteWAVFile writes chunk to path as a 16-bit PCM WAV file.
func WriteWAVFile(path string, chunk AudioChunk) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := EncodeWAV(f, chunk); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
