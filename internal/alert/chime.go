package alert

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// sampleRate は合成する音声のサンプリング周波数。
	sampleRate = 22050
	// bitDepth は1サンプルのビット数。
	bitDepth = 16
	// wavFormatPCM はWAVのfmtチャンクでリニアPCMを表す値。
	wavFormatPCM = 1
	// amplitude は16bit PCMの最大振幅に対する音量の割合。
	amplitude = 0.3
	// fadeDuration は音の立ち上がりと減衰にかける時間。クリックノイズを防ぐ。
	fadeDuration = 8 * time.Millisecond
)

// Tone は単一周波数の音。
type Tone struct {
	// Frequency は周波数（Hz）。
	Frequency float64
	// Duration は長さ。
	Duration time.Duration
}

// Chime は2音からなる通知音。
type Chime [2]Tone

var (
	// ChimeRising は上昇する2音。新着や完了など通常の通知に使う。
	ChimeRising = Chime{{Frequency: 659.25, Duration: 120 * time.Millisecond}, {Frequency: 880, Duration: 180 * time.Millisecond}}
	// ChimeFalling は下降する2音。却下など注意を促す通知に使う。
	ChimeFalling = Chime{{Frequency: 880, Duration: 120 * time.Millisecond}, {Frequency: 587.33, Duration: 180 * time.Millisecond}}
)

// Duration はチャイム全体の長さを返す。
func (c Chime) Duration() time.Duration {
	return c[0].Duration + c[1].Duration
}

// Synthesize はチャイムを16bitモノラルPCMのWAVデータに変換する。
func Synthesize(c Chime) ([]byte, error) {
	var samples []int
	for _, tone := range c {
		samples = appendTone(samples, tone)
	}

	var out wavBuffer
	enc := wav.NewEncoder(&out, sampleRate, bitDepth, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("通知音のエンコードに失敗: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("通知音のエンコードに失敗: %w", err)
	}
	return out.Bytes(), nil
}

// appendTone は1音分の正弦波サンプルを追加する。
func appendTone(samples []int, tone Tone) []int {
	n := int(tone.Duration.Seconds() * sampleRate)
	fade := int(fadeDuration.Seconds() * sampleRate)
	for i := range n {
		env := 1.0
		switch {
		case i < fade:
			env = float64(i) / float64(fade)
		case i >= n-fade:
			env = float64(n-i) / float64(fade)
		}
		v := math.Sin(2*math.Pi*tone.Frequency*float64(i)/sampleRate) * amplitude * env
		samples = append(samples, int(v*math.MaxInt16))
	}
	return samples
}

// wavBuffer はメモリ上の io.WriteSeeker。エンコーダーは終了時にヘッダーのサイズ欄へ戻って書き込む。
type wavBuffer struct {
	data []byte
	pos  int
}

func (b *wavBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *wavBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(b.pos)
	case io.SeekEnd:
		base = int64(len(b.data))
	default:
		return 0, errors.New("不正なwhence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("負の位置にはシークできません")
	}
	b.pos = int(next)
	return next, nil
}

// Bytes は書き込まれたデータを返す。
func (b *wavBuffer) Bytes() []byte {
	return b.data
}
