package sysutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" DEBUG\n", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q) -> %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestConfigureLogger(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	ConfigureLogger(&buf, false)
	log.Info().Str("k", "v").Msg("json line")
	if !strings.Contains(buf.String(), `"k":"v"`) || !strings.Contains(buf.String(), `"time":`) {
		t.Fatalf("json output = %q", buf.String())
	}

	buf.Reset()
	ConfigureLogger(&buf, true)
	log.Info().Str("k", "v").Msg("console line")
	out := buf.String()
	if strings.HasPrefix(out, "{") || !strings.Contains(out, "console line") || !strings.Contains(out, "k=") {
		t.Fatalf("console output = %q", out)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{" ", "\t"}, ""},
		{[]string{"", "v1.4.0", "dev"}, "v1.4.0"},
		{[]string{"  padded  ", "dev"}, "  padded  "},
	}
	for _, tc := range cases {
		if got := FirstNonEmpty(tc.in...); got != tc.want {
			t.Fatalf("FirstNonEmpty(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
