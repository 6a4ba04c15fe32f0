package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/xid"
	"github.com/rohmanhakim/archivist/pkg/failure"
	"github.com/rohmanhakim/archivist/pkg/fileutil"
	"github.com/rohmanhakim/archivist/pkg/hashutil"
)

/*
Responsibilities
- Own exactly one append-only container per worker process
- Return the coordinates of every appended record

Containers are never rewritten. Concurrent workers each hold their own
container, so appends from distinct processes address disjoint files and
no offset coordination is needed.
*/

type Appender interface {
	Append(record []byte) (Coordinates, failure.ClassifiedError)
	ContainerID() string
}

// FSAppender appends records to a single container file under a local
// blob directory shared with (or synced to) the blob store that replay
// reads from. Container files are bucketed into shard directories so a
// long-running deployment does not accumulate one flat directory.
type FSAppender struct {
	mu          sync.Mutex
	baseDir     string
	containerID string
	file        *os.File
	offset      int64
}

// NewFSAppender creates the worker's container. The container id embeds
// the worker region so operators can attribute archive growth.
func NewFSAppender(baseDir, region string) (*FSAppender, failure.ClassifiedError) {
	containerID := fmt.Sprintf("%s-%s.rec", region, xid.New().String())

	shard := hashutil.ShardKey(containerID, 2)
	if err := fileutil.EnsureDir(baseDir, shard); err != nil {
		return nil, err
	}

	path := filepath.Join(baseDir, shard, containerID)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &BlobError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseAppendFailure,
		}
	}

	return &FSAppender{
		baseDir:     baseDir,
		containerID: containerID,
		file:        file,
	}, nil
}

func (a *FSAppender) ContainerID() string {
	return a.containerID
}

// Append writes one encoded record and returns its coordinates. The
// offset bookkeeping is local because this appender is the only writer
// of its container.
func (a *FSAppender) Append(record []byte) (Coordinates, failure.ClassifiedError) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, err := a.file.Write(record)
	if err != nil {
		return Coordinates{}, &BlobError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseAppendFailure,
		}
	}
	if n != len(record) {
		return Coordinates{}, &BlobError{
			Message:   fmt.Sprintf("short write: %d of %d bytes", n, len(record)),
			Retryable: false,
			Cause:     ErrCauseAppendFailure,
		}
	}

	coords := NewCoordinates(a.containerID, a.offset, int64(len(record)))
	a.offset += int64(len(record))
	return coords, nil
}

func (a *FSAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// ContainerPath resolves a container id to its path under baseDir using
// the same sharding rule the appender applied on create.
func ContainerPath(baseDir, containerID string) string {
	return filepath.Join(baseDir, hashutil.ShardKey(containerID, 2), containerID)
}
