package logs

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	t.Run("LevelFiltering", func(t *testing.T) {
		logger := NewLogger(10, INFO)
		// Minimum level is INFO
		logger.Debug("should not be logged")
		logger.Info("should be logged")
		logger.Warn("should be logged")
		logger.Error("should be logged")

		entries := logger.GetLast(10)
		assert.Len(t, entries, 3, "Logger should have ignored DEBUG but kept INFO, WARN, and ERROR")
		assert.Equal(t, INFO, entries[0].Level)
		assert.Equal(t, WARN, entries[1].Level)
		assert.Equal(t, ERROR, entries[2].Level)
	})

	t.Run("RingBufferBehavior", func(t *testing.T) {
		// max size is 2 so adding a 3rd entry shall push out the first entry (FIFO)
		logger := NewLogger(2, DEBUG)

		logger.Info("first")
		logger.Info("second")
		logger.Info("third")

		entries := logger.GetLast(10)
		assert.Len(t, entries, 2, "Logger should only keep maxSize entries")
		assert.Equal(t, "second", entries[0].Message)
		assert.Equal(t, "third", entries[1].Message)

	})

	t.Run("ConcurrentLogging", func(t *testing.T) {
		//50 different goroutines logging simultaneously
		logger := NewLogger(100, DEBUG)
		var wg sync.WaitGroup
		numLogs := 50

		for i := 0; i < numLogs; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				logger.Info("concurrent log", "worker", i)
			}(i)
		}
		wg.Wait()

		entries := logger.GetLast(100)
		assert.Len(t, entries, numLogs, "Logger should have all concurrent log entries")
	})

	t.Run("GetLastBoundaries,", func(t *testing.T) {
		//3 logs in memory
		//test requesting more, equal and less than available logs
		logger := NewLogger(10, DEBUG)
		logger.Info("msg1")
		logger.Info("msg2")
		logger.Info("msg3")

		//case 1: request more than available (should return all 3)
		assert.Len(t, logger.GetLast(10), 3)

		//case 2: request exactly available (should return all 3)
		assert.Len(t, logger.GetLast(3), 3)

		//case 3: request less than available (should return last 2)
		lastTwo := logger.GetLast(2)
		assert.Len(t, lastTwo, 2)
		assert.Equal(t, "msg2", lastTwo[0].Message)
		assert.Equal(t, "msg3", lastTwo[1].Message)

	})

	t.Run("DeepCopyProtection", func(t *testing.T) {
		logger := NewLogger(10, DEBUG)
		logger.Info("original message")

		entries := logger.GetLast(1)
		entries[0].Message = "modified message"

		entriesAfterModification := logger.GetLast(1)
		assert.Equal(t, "original message", entriesAfterModification[0].Message, "Modifying retrieved entries should not affect internal log storage")
	})

	t.Run("ComponentAndFields", func(t *testing.T) {
		logger := NewLogger(10, DEBUG)
		fetchLog := logger.WithComponent("fetch")

		fetchLog.Warn("attempt timed out", "attempt", 2, "timeout", "200s")

		entries := logger.GetLast(1)
		require.Len(t, entries, 1, "children share the parent's entries")
		assert.Equal(t, "fetch", entries[0].Component)
		assert.Equal(t, WARN, entries[0].Level)
		assert.Equal(t, 2, entries[0].Fields["attempt"])
		assert.Equal(t, "200s", entries[0].Fields["timeout"])
	})
}

func TestLoggerSink(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(10, INFO, &buf).WithComponent("probe").With("run_id", "r-1")

	logger.Debug("filtered")
	logger.Info("report fetched", "attempts", 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "report fetched", line["message"])
	assert.Equal(t, "probe", line["component"])
	assert.Equal(t, "r-1", line["run_id"])
	assert.EqualValues(t, 1, line["attempts"])

	entries := logger.GetLast(1)
	require.Len(t, entries, 1)
	assert.Equal(t, "r-1", entries[0].Fields["run_id"])
	assert.Equal(t, 1, entries[0].Fields["attempts"])
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"":        INFO,
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		" error ": ERROR,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, strconv.Quote(in))
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	t.Run("FileOutput", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "probe.log")
		logger, err := New(Config{Level: "info", Output: path, RingSize: 5})
		require.NoError(t, err)

		logger.Info("hello")
		require.NoError(t, logger.Close())
		assert.FileExists(t, path)
		assert.Len(t, logger.GetLast(10), 1)
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := New(Config{Level: "verbose"})
		assert.Error(t, err)
	})
}
