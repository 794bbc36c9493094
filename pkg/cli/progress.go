package cli

import (
	"github.com/dustin/go-humanize"

	"sbdl/pkg/display"
)

// taskProgress feeds one source's fetch fractions and byte counts into its
// task line. Its callbacks run on the loading goroutine only.
// Mutable
type taskProgress struct {
	task        display.Task
	downloading bool
	fraction    float64
	message     string
}

// progress marks the start of the payload download on its first call;
// metadata lookups report no fractions.
func (p *taskProgress) progress(f float64) {
	if !p.downloading {
		p.downloading = true
		p.message = ""
		p.task.SetStage("Download", "")
	}
	p.fraction = f
	p.task.Progress(p.fraction, p.message)
}

func (p *taskProgress) gotBytes(loaded, total int64) {
	p.message = byteCount(loaded, total)
	p.task.Progress(p.fraction, p.message)
}

func byteCount(loaded, total int64) string {
	if total <= 0 {
		return humanize.Bytes(uint64(loaded))
	}
	return humanize.Bytes(uint64(loaded)) + " / " + humanize.Bytes(uint64(total))
}
