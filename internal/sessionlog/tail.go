package sessionlog

import (
	"bufio"
	"os"

	cctmerrors "github.com/RyosukeMondo/cc-task-manager-sub009/internal/errors"
)

// Tail returns up to n trailing lines of the transcript at path.
// Best-effort: a missing file yields ErrSessionLogNotFound so callers can
// log and move on.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cctmerrors.Wrap(cctmerrors.ErrSessionLogNotFound, path)
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	// Ring buffer over a forward scan. Transcripts are append-only JSONL;
	// a single pass keeps memory bounded to the window.
	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return ring, err
	}
	return ring, nil
}
