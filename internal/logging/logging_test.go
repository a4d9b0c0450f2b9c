package logging

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// syncBuffer lets concurrent writers share one buffer safely.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestOutputSplitter_ErrorRoutesToErr(t *testing.T) {
	out := &syncBuffer{}
	errOut := &syncBuffer{}
	splitter := &OutputSplitter{Out: out, Err: errOut}

	msg := []byte(`time="2024-01-15T10:30:00Z" level=error msg="Database connection failed"`)
	n, err := splitter.Write(msg)
	assert.NoError(t, err)
	assert.Equal(t, len(msg), n)

	assert.Equal(t, string(msg), errOut.String())
	assert.Empty(t, out.String())
}

func TestOutputSplitter_FatalRoutesToErr(t *testing.T) {
	out := &syncBuffer{}
	errOut := &syncBuffer{}
	splitter := &OutputSplitter{Out: out, Err: errOut}

	msg := []byte(`time="2024-01-15T10:30:00Z" level=fatal msg="unrecoverable"`)
	_, err := splitter.Write(msg)
	assert.NoError(t, err)

	assert.Equal(t, string(msg), errOut.String())
	assert.Empty(t, out.String())
}

func TestOutputSplitter_NonErrorRoutesToOut(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
	}{
		{"InfoLevel", []byte(`time="2024-01-15T10:30:00Z" level=info msg="Service started"`)},
		{"WarnLevel", []byte(`time="2024-01-15T10:30:00Z" level=warning msg="High memory usage"`)},
		{"DebugLevel", []byte(`time="2024-01-15T10:30:00Z" level=debug msg="Processing request"`)},
		{"ErrorWordInMessageButInfoLevel", []byte(`time="2024-01-15T10:30:00Z" level=info msg="error occurred but not error level"`)},
		{"DifferentCaseLevelError", []byte(`LEVEL=ERROR this must not match the lowercase marker`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &syncBuffer{}
			errOut := &syncBuffer{}
			splitter := &OutputSplitter{Out: out, Err: errOut}

			n, err := splitter.Write(tt.msg)
			assert.NoError(t, err)
			assert.Equal(t, len(tt.msg), n)

			assert.Equal(t, string(tt.msg), out.String())
			assert.Empty(t, errOut.String())
		})
	}
}

func TestOutputSplitter_DefaultsToStdoutStderrWhenUnset(t *testing.T) {
	// A zero-value splitter must still succeed (falling back to os.Stdout/
	// os.Stderr) rather than nil-pointer-dereferencing.
	splitter := &OutputSplitter{}
	n, err := splitter.Write([]byte("no explicit writers configured\n"))
	assert.NoError(t, err)
	assert.Equal(t, len("no explicit writers configured\n"), n)
}

func TestOutputSplitter_ConcurrentWrites(t *testing.T) {
	out := &syncBuffer{}
	splitter := &OutputSplitter{Out: out, Err: &syncBuffer{}}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := splitter.Write([]byte("Concurrent message from goroutine\n"))
			assert.NoError(t, err)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestLogger_Initialization(t *testing.T) {
	assert.NotNil(t, Logger, "Logger should be initialized")
	assert.NotNil(t, Logger.Out, "Logger output should be set")
}

func TestLogger_OutputIsSplitter(t *testing.T) {
	_, ok := Logger.Out.(*OutputSplitter)
	assert.True(t, ok, "Logger should use OutputSplitter")
}

func TestNewRoutesErrorAndInfoToDistinctWriters(t *testing.T) {
	logger := New(Config{Level: LevelDebug, Format: "text"})
	splitter, ok := logger.Out.(*OutputSplitter)
	if !ok {
		t.Fatal("expected New to configure an *OutputSplitter")
	}

	out := &syncBuffer{}
	errOut := &syncBuffer{}
	splitter.Out = out
	splitter.Err = errOut

	logger.Info("plain info line")
	logger.Error("broken thing")

	assert.Contains(t, out.String(), "plain info line")
	assert.NotContains(t, out.String(), "broken thing")
	assert.Contains(t, errOut.String(), "broken thing")
	assert.NotContains(t, errOut.String(), "plain info line")
}

func BenchmarkOutputSplitter_Write(b *testing.B) {
	splitter := &OutputSplitter{Out: &syncBuffer{}, Err: &syncBuffer{}}
	message := []byte(`time="2024-01-15T10:30:00Z" level=info msg="Benchmark message"`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		splitter.Write(message)
	}
}

func BenchmarkOutputSplitter_WriteError(b *testing.B) {
	splitter := &OutputSplitter{Out: &syncBuffer{}, Err: &syncBuffer{}}
	message := []byte(`time="2024-01-15T10:30:00Z" level=error msg="Benchmark error message"`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		splitter.Write(message)
	}
}
