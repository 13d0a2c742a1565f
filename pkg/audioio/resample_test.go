package audioio

import (
	"math"
	"testing"
)

func sine(rate, n int, freq, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		in       int
		want     int
	}{
		{"rvc 40k to playback", 40000, 44100, 4000, 4410},
		{"tts 24k to playback", 24000, 44100, 2400, 4410},
		{"48k to playback", 48000, 44100, 4800, 4410},
		{"mic 48k to recognizer", 48000, 16000, 4800, 1600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resample(make([]int16, tt.in), tt.from, tt.to)
			if d := len(got) - tt.want; d < -1 || d > 1 {
				t.Errorf("len = %d, want %d (±1)", len(got), tt.want)
			}
		})
	}
}

func TestResample_Passthrough(t *testing.T) {
	in := []int16{1, 2, 3}
	if got := Resample(in, 16000, 16000); len(got) != 3 || got[2] != 3 {
		t.Errorf("same rate should return input, got %v", got)
	}
	if got := Resample(nil, 24000, 44100); len(got) != 0 {
		t.Errorf("empty input gave %v", got)
	}
	if got := Resample([]int16{5}, 44100, 8000); len(got) != 0 {
		t.Errorf("too short to downsample, got %v", got)
	}
}

func TestResample_PreservesLoudness(t *testing.T) {
	in := sine(24000, 24000, 440, 0.5)
	out := Resample(in, 24000, 44100)

	before, after := CalculateRMS(in), CalculateRMS(out)
	if math.Abs(before-after) > 0.02 {
		t.Errorf("RMS changed from %.3f to %.3f", before, after)
	}
}

func TestResample_Interpolates(t *testing.T) {
	out := Resample([]int16{0, 1000, 2000, 3000}, 1, 2)
	if len(out) != 8 {
		t.Fatalf("len = %d", len(out))
	}
	if out[0] != 0 || out[1] != 500 || out[2] != 1000 {
		t.Errorf("expected midpoints, got %v", out)
	}
	if out[7] != 3000 {
		t.Errorf("tail should hold the last sample, got %d", out[7])
	}
}

func TestPCMBytes(t *testing.T) {
	samples := []int16{0x1234, -1, 32767, -32768}
	data := SamplesToBytes(samples)

	want := []byte{0x34, 0x12, 0xff, 0xff, 0xff, 0x7f, 0x00, 0x80}
	if string(data) != string(want) {
		t.Fatalf("little-endian encoding = % x, want % x", data, want)
	}
	back := BytesToSamples(data)
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d = %d, want %d", i, back[i], samples[i])
		}
	}

	if got := BytesToSamples([]byte{1, 0, 9}); len(got) != 1 || got[0] != 1 {
		t.Errorf("odd trailing byte should be dropped, got %v", got)
	}
}

func TestResampleBytes(t *testing.T) {
	data := SamplesToBytes(make([]int16, 320))
	if got := ResampleBytes(data, 16000, 8000); len(got) != 320 {
		t.Errorf("expected 160 samples (320 bytes), got %d bytes", len(got))
	}
}

func TestConvertChannels(t *testing.T) {
	tests := []struct {
		name     string
		in       []int16
		from, to int
		want     []int16
	}{
		{"stereo to mono", []int16{100, 300, -100, -300}, 2, 1, []int16{200, -200}},
		{"mono to stereo", []int16{200, -200}, 1, 2, []int16{200, 200, -200, -200}},
		{"quad to mono", []int16{4, 8, 12, 16}, 4, 1, []int16{10}},
		{"quad to stereo", []int16{4, 8, 12, 16}, 4, 2, []int16{10, 10}},
		{"unchanged", []int16{7, 8}, 2, 2, []int16{7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertChannels(tt.in, tt.from, tt.to)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestNormalizePeak(t *testing.T) {
	quiet := []int16{1000, -2000, 500}
	got := NormalizePeak(quiet, 0.9)
	if got[1] != -29490 || got[0] != 14745 {
		t.Errorf("unexpected scaling %v", got)
	}
	if quiet[1] != -2000 {
		t.Error("input should not be modified")
	}

	if got := NormalizeSamples([]int16{16384, -8192}); got[0] != 32767 {
		t.Errorf("full-scale normalize gave %v", got)
	}

	loudest := NormalizePeak([]int16{-32768, 0, 16384}, 0.5)
	if loudest[0] > -16380 || loudest[0] < -16384 {
		t.Errorf("expected about -16383, got %d", loudest[0])
	}

	for name, in := range map[string][]int16{"silence": {0, 0, 0}, "empty": {}} {
		if got := NormalizePeak(in, 0.9); len(got) != len(in) || (len(in) > 0 && got[0] != 0) {
			t.Errorf("%s: got %v", name, got)
		}
	}
	if got := NormalizePeak(quiet, 0); got[0] != 1000 {
		t.Errorf("zero target should leave samples alone, got %v", got)
	}
}

func TestCalculateRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", make([]int16, 160), 0},
		{"full-scale square", []int16{32767, -32767, 32767, -32767}, 1},
		{"sine", sine(16000, 16000, 100, 1), 1 / math.Sqrt2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateRMS(tt.samples); math.Abs(got-tt.want) > 0.01 {
				t.Errorf("RMS = %.4f, want %.4f", got, tt.want)
			}
		})
	}
}
