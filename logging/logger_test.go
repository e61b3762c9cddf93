// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFromEnv(t *testing.T) {
	_, _, _, err := loggerFromEnv("verbose", "")
	assert.NotNil(t, err)

	l, flush, lvl, err := loggerFromEnv("", "")
	require.Nil(t, err)
	require.NotNil(t, l)
	assert.Equal(t, InfoLevel, lvl)
	l.Errorf("discarded %d", 1)
	assert.Nil(t, flush())

	l, _, lvl, err = loggerFromEnv("-1", "")
	require.Nil(t, err)
	assert.NotNil(t, l)
	assert.Equal(t, DebugLevel, lvl)

	fn := filepath.Join(t.TempDir(), "env.log")
	l, flush, lvl, err = loggerFromEnv("1", fn)
	require.Nil(t, err)
	assert.Equal(t, WarnLevel, lvl)
	l.Infof("quiet")
	l.Warnf("loud")
	_ = flush()
	b, err := os.ReadFile(fn)
	require.Nil(t, err)
	assert.Contains(t, string(b), "loud")
	assert.NotContains(t, string(b), "quiet")
}

func TestDefaultFromEnvInvalid(t *testing.T) {
	var stderr bytes.Buffer
	l, flush, lvl := defaultFromEnv("verbose", "", &stderr)
	require.NotNil(t, l)
	assert.Equal(t, InfoLevel, lvl)
	assert.Contains(t, stderr.String(), "[gpiolib] logging disabled")
	assert.Contains(t, stderr.String(), levelEnv)
	l.Errorf("discarded %d", 1)
	assert.Nil(t, flush())

	stderr.Reset()
	l, _, lvl = defaultFromEnv("-1", "", &stderr)
	assert.NotNil(t, l)
	assert.Equal(t, DebugLevel, lvl)
	assert.Empty(t, stderr.String())
}

func TestCreateLoggerAsLocalFile(t *testing.T) {
	_, _, err := CreateLoggerAsLocalFile("", InfoLevel)
	assert.NotNil(t, err)

	fn := filepath.Join(t.TempDir(), "gpiolib.log")
	l, flush, err := CreateLoggerAsLocalFile(fn, WarnLevel)
	require.Nil(t, err)
	l.Debugf("hidden %d", 1)
	l.Infof("hidden %d", 2)
	l.Warnf("shown %d", 3)
	l.Errorf("shown %d", 4)
	_ = flush()

	b, err := os.ReadFile(fn)
	require.Nil(t, err)
	s := string(b)
	assert.Contains(t, s, "[gpiolib]")
	assert.Contains(t, s, "shown 3")
	assert.Contains(t, s, "shown 4")
	assert.NotContains(t, s, "hidden")
}

func TestDefaultLogger(t *testing.T) {
	assert.NotNil(t, GetDefaultLogger())
	assert.NotEmpty(t, LogLevel())
	// the package level helpers must not panic with the default logger
	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warnf("warn %d", 3)
	Error(nil)
	Cleanup()
}
