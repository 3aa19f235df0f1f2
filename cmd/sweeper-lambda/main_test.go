package main

import (
	"context"
	"errors"
	"testing"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

type stubSweeper struct {
	resolved int
	err      error
	calls    int
}

func (s *stubSweeper) Sweep(context.Context) (int, error) {
	s.calls++
	return s.resolved, s.err
}

func TestHandleReportsResolvedCount(t *testing.T) {
	s := &stubSweeper{resolved: 3}
	h := &handler{sweeper: s, logger: logging.New("error")}

	out, err := h.handle(context.Background(), awsevents.CloudWatchEvent{ID: "evt-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Resolved)
	assert.Equal(t, 1, s.calls)
}

func TestHandleSurfacesPartialFailure(t *testing.T) {
	h := &handler{sweeper: &stubSweeper{resolved: 1, err: errors.New("dynamo throttled")}, logger: logging.New("error")}

	out, err := h.handle(context.Background(), awsevents.CloudWatchEvent{})
	require.Error(t, err)
	assert.Equal(t, 1, out.Resolved)
}
