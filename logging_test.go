package sdfcull

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLoggerLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo(&out, &errOut, "sdfcull", false)

	l.Debugf("hidden %d", 1)
	l.Infof("frame %d", 7)
	l.Errorf("lost")
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[sdfcull] INFO: frame 7")
	assert.Contains(t, errOut.String(), "[sdfcull] ERROR: lost")

	l.SetDebug(true)
	l.Debugf("shown")
	assert.Contains(t, out.String(), "DEBUG: shown")
}

func TestWithComponent(t *testing.T) {
	var out, errOut bytes.Buffer
	base := NewLoggerTo(&out, &errOut, "sdfcull", false)
	pass := WithComponent(WithComponent(base, "host"), PassCull)

	pass.Warnf("%d entries dropped", 3)
	assert.Contains(t, errOut.String(), "[sdfcull] WARN: host/cull: 3 entries dropped")

	// Debug state is shared with the base logger.
	base.SetDebug(true)
	assert.True(t, pass.DebugEnabled())
	pass.Debugf("barrier %s", "x")
	assert.Contains(t, out.String(), "host/cull: barrier x")

	assert.Equal(t, base, WithComponent(base, ""))
}
