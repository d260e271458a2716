package observe

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/agent-racer/longpoll/internal/longpoll"
)

// FileState is the part of a file's metadata that signals a rewrite.
type FileState struct {
	ModTime time.Time `json:"modTime"`
	Size    int64     `json:"size"`
}

// File observes path. A missing file is absent rather than an error, so a
// session can wait for it to appear.
func File(path string) longpoll.ObserveFunc[FileState] {
	return func() (FileState, bool) {
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Printf("observe: stat %s: %v", path, err)
			}
			return FileState{}, false
		}
		return FileState{ModTime: info.ModTime(), Size: info.Size()}, true
	}
}

// FileChanged reports a change in size or modification time.
func FileChanged() longpoll.ChangeFunc[FileState] {
	return func(candidate, previous FileState) bool {
		return candidate.Size != previous.Size || !candidate.ModTime.Equal(previous.ModTime)
	}
}
