package linear_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bundle/internal/adapters/linear"
)

func TestRenderer(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	r := linear.NewRenderer(&buf)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Start(context.Background()))
	r.OnPlanEmit([]string{"rack-2.2.8", "rails-7.1.0", "thor-1.3.0"})

	r.OnInstallStart("s0", "resolve", start)
	r.OnInstallComplete("s0", start.Add(time.Second), nil, false)

	r.OnInstallStart("s1", "rack-2.2.8", start)
	r.OnInstallStart("s2", "thor-1.3.0", start)
	r.OnInstallComplete("s2", start.Add(5*time.Millisecond), nil, true)
	r.OnInstallComplete("s1", start.Add(1500*time.Millisecond), nil, false)
	r.OnInstallStart("s3", "rails-7.1.0", start)
	r.OnInstallComplete("s3", start.Add(2*time.Second), errors.New("checksum mismatch"), false)

	require.NoError(t, r.Stop())
	require.NoError(t, r.Wait())

	assert.Equal(t,
		"[1/3] Using thor-1.3.0\n"+
			"[2/3] ✓ Installed rack-2.2.8 in 1.5s\n"+
			"[3/3] ✗ Failed rails-7.1.0 after 2s: checksum mismatch\n",
		buf.String())
}

func TestRenderer_UnknownSpan(t *testing.T) {
	var buf bytes.Buffer
	r := linear.NewRenderer(&buf)

	r.OnInstallComplete("missing", time.Now(), nil, false)
	assert.Empty(t, buf.String())
}
