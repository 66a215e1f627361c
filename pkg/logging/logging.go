// Package logging はzerologベースの構造化ロガーを生成する。
//
// 人が読むためのコンソール形式と、集約基盤向けのJSON形式を切り替えられる。
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// consoleTimeFormat はコンソール出力のタイムスタンプ形式。
const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Format はログの出力形式を表す。
type Format string

const (
	// FormatConsole は人が読みやすいkey=value形式。
	FormatConsole Format = "console"
	// FormatJSON は1行1JSONの構造化形式。
	FormatJSON Format = "json"
)

// New は指定レベルと形式のロガーを標準エラー出力向けに生成する。
func New(level string, format Format) zerolog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter は任意のWriterに出力するロガーを生成する。
func NewWithWriter(w io.Writer, level string, format Format) zerolog.Logger {
	zerolog.TimeFieldFormat = consoleTimeFormat
	zerolog.ErrorFieldName = "err"

	out := w
	if format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel は文字列をログレベルに変換する。不明な値はinfoとして扱う。
func ParseLevel(level string) zerolog.Level {
	lv, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lv == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lv
}
