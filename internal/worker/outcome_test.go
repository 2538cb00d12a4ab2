package worker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryworks/foreman/internal/domain"
	foremanerrors "github.com/quarryworks/foreman/internal/errors"
)

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		name    string
		taskID  int64
		output  string
		want    *domain.WorkerOutcome
		wantErr error
	}{
		{
			name:   "completion marker",
			taskID: 42,
			output: "doing work\nTASK_COMPLETE:42\n",
			want:   &domain.WorkerOutcome{Kind: domain.OutcomeComplete, TaskID: 42},
		},
		{
			name:   "completion with publish confirmation",
			taskID: 42,
			output: "GIT_PUSHED:42:refs/heads/main:ab12cd3\nTASK_COMPLETE:42\n",
			want: &domain.WorkerOutcome{
				Kind: domain.OutcomeComplete, TaskID: 42,
				Published: true, PublishRef: "refs/heads/main", PublishID: "ab12cd3",
			},
		},
		{
			name:   "completion without publish confirmation",
			taskID: 42,
			output: "TASK_COMPLETE:42\n",
			want:   &domain.WorkerOutcome{Kind: domain.OutcomeComplete, TaskID: 42},
		},
		{
			name:   "blocked with reason containing colons",
			taskID: 7,
			output: "TASK_BLOCKED:7:cannot reach db: connection refused\n",
			want: &domain.WorkerOutcome{
				Kind: domain.OutcomeBlocked, TaskID: 7,
				Reason: "cannot reach db: connection refused",
			},
		},
		{
			name:   "blocked without reason gets a default",
			taskID: 7,
			output: "TASK_BLOCKED:7\n",
			want:   &domain.WorkerOutcome{Kind: domain.OutcomeBlocked, TaskID: 7, Reason: "no completion marker"},
		},
		{
			name:   "later marker wins",
			taskID: 9,
			output: "TASK_BLOCKED:9:flaky test\nTASK_COMPLETE:9\n",
			want:   &domain.WorkerOutcome{Kind: domain.OutcomeComplete, TaskID: 9},
		},
		{
			name:    "marker for a different task is ignored",
			taskID:  1,
			output:  "TASK_COMPLETE:2\n",
			wantErr: foremanerrors.ErrNoMarker,
		},
		{
			name:    "no marker at all",
			taskID:  1,
			output:  "panic: something broke\n",
			wantErr: foremanerrors.ErrNoMarker,
		},
		{
			name:    "empty output",
			taskID:  1,
			output:  "",
			wantErr: foremanerrors.ErrNoMarker,
		},
		{
			name:    "malformed task id",
			taskID:  1,
			output:  "TASK_COMPLETE:banana\n",
			wantErr: foremanerrors.ErrNoMarker,
		},
		{
			name:   "markers embedded in noisy output",
			taskID: 3,
			output: "some log line\n  TASK_COMPLETE:3  \ntrailing noise\n",
			want:   &domain.WorkerOutcome{Kind: domain.OutcomeComplete, TaskID: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutcome(tt.taskID, tt.output)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadOutcome(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "run.log")
	require.NoError(t, os.WriteFile(path, []byte("TASK_COMPLETE:5\n"), 0o640))

	outcome, err := ReadOutcome(path, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeComplete, outcome.Kind)

	_, err = ReadOutcome(filepath.Join(dir, "missing.log"), 5)
	require.ErrorIs(t, err, foremanerrors.ErrNoMarker)
}

func TestTailOutput(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "run.log")
	big := strings.Repeat("x", 8000) + "END"
	require.NoError(t, os.WriteFile(path, []byte(big), 0o640))

	tail := TailOutput(path)
	assert.LessOrEqual(t, len(tail), maxTailBytes)
	assert.True(t, strings.HasSuffix(tail, "END"))

	assert.Empty(t, TailOutput(filepath.Join(dir, "missing.log")))
}
