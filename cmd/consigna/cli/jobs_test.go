package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/consigna/consigna/jobs"
)

func TestBuildTask(t *testing.T) {
	task, err := BuildTask("cutoff", time.Date(2024, 5, 1, 4, 31, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, jobs.TaskCutoffSweep, task.Type())
	var payload jobs.CutoffSweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "2024-05-01T04:31:00Z", payload.At)

	task, err = BuildTask(jobs.TaskOutboxRelay, time.Time{})
	require.NoError(t, err)
	require.Equal(t, jobs.TaskOutboxRelay, task.Type())

	_, err = BuildTask("reindex", time.Time{})
	require.Error(t, err)
}

func TestNewJobsCLIRequiresAddress(t *testing.T) {
	_, err := NewJobsCLI("")
	require.Error(t, err)
}
