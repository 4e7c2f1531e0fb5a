package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormatsPattern(t *testing.T) {
	var out bytes.Buffer
	l, err := New(&Config{Level: "debug", Pattern: "%level|%msg|%field%n"}, &out)
	require.NoError(t, err)

	l.WithFields(map[string]interface{}{"type": "IPv4", "len": 20}).Info("decoded")
	assert.Equal(t, "info|decoded|len=20,type=IPv4\n", out.String())

	out.Reset()
	l.WithError(errors.New("boom")).Debugf("frame %d", 7)
	assert.Equal(t, "debug|frame 7|error=boom\n", out.String())
}

func TestLevelFiltering(t *testing.T) {
	var out bytes.Buffer
	l, err := New(&Config{Level: "warn", Pattern: "%msg%n"}, &out)
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown")
	assert.Equal(t, "shown\n", out.String())
	assert.False(t, l.IsInfoEnabled())
	assert.False(t, l.IsDebugEnabled())
}

func TestDefaultsApplied(t *testing.T) {
	c := (*Config)(nil).withDefaults()
	assert.Equal(t, DefaultLevel, c.Level)
	assert.Equal(t, DefaultPattern, c.Pattern)
	assert.Equal(t, DefaultTimeLayout, c.Time)
}

func TestInvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"}, nil)
	assert.Error(t, err)
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netcodec.log")
	l, err := New(&Config{Pattern: "%msg%n", File: FileAppenderOpt{Filename: path, MaxSize: 1}}, nil)
	require.NoError(t, err)

	l.Info("to file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "to file\n", string(data))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestMultiWriterKeepsGoing(t *testing.T) {
	var out bytes.Buffer
	w := NewMultiWriter().Add(failingWriter{}).Add(&out)
	n, err := w.Write([]byte("x"))
	assert.Equal(t, 1, n)
	assert.Error(t, err)
	assert.Equal(t, "x", out.String())
}

func TestGetLoggerBeforeInit(t *testing.T) {
	assert.NotNil(t, GetLogger())
	assert.NotPanics(t, func() { GetLogger().WithField("k", "v").Debug("quiet") })
}
