package worker

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/quarryworks/foreman/internal/constants"
	"github.com/quarryworks/foreman/internal/domain"
	foremanerrors "github.com/quarryworks/foreman/internal/errors"
)

// maxTailBytes bounds how much worker output is attached to an escalation.
const maxTailBytes = 4096

// ParseOutcome scans worker output for completion markers addressed to
// taskID and returns the typed outcome. Markers referencing other task ids
// are ignored. When both a block and a completion marker appear, the later
// one wins. Returns ErrNoMarker when the output carries no verdict: silence
// is never success.
func ParseOutcome(taskID int64, output string) (*domain.WorkerOutcome, error) {
	var outcome *domain.WorkerOutcome
	var published bool
	var publishRef, publishID string

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, constants.MarkerComplete):
			id, ok := parseMarkerID(strings.TrimPrefix(line, constants.MarkerComplete))
			if !ok || id != taskID {
				continue
			}
			outcome = &domain.WorkerOutcome{Kind: domain.OutcomeComplete, TaskID: taskID}

		case strings.HasPrefix(line, constants.MarkerBlocked):
			rest := strings.TrimPrefix(line, constants.MarkerBlocked)
			parts := strings.SplitN(rest, ":", 2)
			id, ok := parseMarkerID(parts[0])
			if !ok || id != taskID {
				continue
			}
			reason := ""
			if len(parts) == 2 {
				reason = strings.TrimSpace(parts[1])
			}
			if reason == "" {
				reason = constants.ReasonNoMarker
			}
			outcome = &domain.WorkerOutcome{Kind: domain.OutcomeBlocked, TaskID: taskID, Reason: reason}

		case strings.HasPrefix(line, constants.MarkerPushed):
			rest := strings.TrimPrefix(line, constants.MarkerPushed)
			parts := strings.SplitN(rest, ":", 3)
			id, ok := parseMarkerID(parts[0])
			if !ok || id != taskID {
				continue
			}
			published = true
			if len(parts) > 1 {
				publishRef = strings.TrimSpace(parts[1])
			}
			if len(parts) > 2 {
				publishID = strings.TrimSpace(parts[2])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, foremanerrors.Wrap(err, "failed to scan worker output")
	}

	if outcome == nil {
		return nil, foremanerrors.Wrapf(foremanerrors.ErrNoMarker, "task %d", taskID)
	}
	if outcome.Kind == domain.OutcomeComplete {
		outcome.Published = published
		outcome.PublishRef = publishRef
		outcome.PublishID = publishID
	}
	return outcome, nil
}

// ReadOutcome loads a worker's captured output file and parses it. A missing
// file is treated the same as markerless output.
func ReadOutcome(path string, taskID int64) (*domain.WorkerOutcome, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from our own run id
	if os.IsNotExist(err) {
		return nil, foremanerrors.Wrapf(foremanerrors.ErrNoMarker, "task %d produced no output", taskID)
	}
	if err != nil {
		return nil, foremanerrors.Wrapf(err, "failed to read worker output %s", path)
	}
	return ParseOutcome(taskID, string(data))
}

// TailOutput returns the last maxTailBytes of a worker's output file, for
// attaching to an escalation. Errors degrade to an empty string; the tail is
// advisory.
func TailOutput(path string) string {
	f, err := os.Open(path) //nolint:gosec // path is built from our own run id
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	offset := info.Size() - maxTailBytes
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return ""
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func parseMarkerID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
