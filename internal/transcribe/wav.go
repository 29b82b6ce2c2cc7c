package transcribe

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAV container layout for 16-bit PCM.
const (
	wavHeaderSize    = 44
	wavFmtChunkSize  = 16
	wavFormatPCM     = 1
	wavBitsPerSample = 16
)

// EncodeWAV wraps raw signed 16-bit little-endian PCM samples in a WAV
// container so OpenAI-compatible endpoints accept them as a file upload.
func EncodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	dataSize := len(samples) * 2
	blockAlign := channels * wavBitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))
	le := func(v any) {
		_ = binary.Write(buf, binary.LittleEndian, v) // bytes.Buffer writes cannot fail
	}

	buf.WriteString("RIFF")
	le(uint32(36 + dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	le(uint32(wavFmtChunkSize))
	le(uint16(wavFormatPCM))
	le(uint16(channels))
	le(uint32(sampleRate))
	le(uint32(byteRate))
	le(uint16(blockAlign))
	le(uint16(wavBitsPerSample))

	buf.WriteString("data")
	le(uint32(dataSize))
	le(samples)

	return buf.Bytes(), nil
}
