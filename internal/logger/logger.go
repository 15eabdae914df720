package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const serviceName = "stockledger"

// New はサービス共通の logger を作り、グローバルと context 既定値にも設定する。
// dev のときだけ人が読みやすい出力にする。
func New(level, env string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return setup(out, level)
}

func setup(out io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	l := zerolog.New(out).Level(lvl).With().Timestamp().Str("service", serviceName).Logger()
	zlog.Logger = l
	//contextにloggerが無いとき（Kafka consumer など）もこれが使われる
	zerolog.DefaultContextLogger = &l
	return l
}
