package logger

import (
	"bytes"
	"log/slog"
	"testing"

	. "github.com/onsi/gomega"
)

func TestParseLevel(t *testing.T) {
	RegisterTestingT(t)

	lvl, ok := ParseLevel("DEBUG")
	Expect(ok).To(BeTrue())
	Expect(lvl).To(Equal(slog.LevelDebug))

	lvl, ok = ParseLevel("verbose")
	Expect(ok).To(BeFalse())
	Expect(lvl).To(Equal(slog.LevelInfo))
}

func TestSetup(t *testing.T) {
	RegisterTestingT(t)
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	log := Setup("warn", &buf)
	log.Info("hidden")
	log.Warn("shown", "key", "value")

	Expect(buf.String()).ToNot(ContainSubstring("hidden"))
	Expect(buf.String()).To(ContainSubstring(`"msg":"shown"`))
	Expect(buf.String()).To(ContainSubstring(`"key":"value"`))
}

func TestSetupWarnsOnUnknownLevel(t *testing.T) {
	RegisterTestingT(t)
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	Setup("loud", &buf)
	Expect(buf.String()).To(ContainSubstring("invalid log level configured"))
}
