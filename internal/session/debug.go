package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sgrover/confab/internal/audio"
)

// dumpAudio writes the captured utterance as a WAV file when the debug dump
// directory is configured. Failures are logged and otherwise ignored.
func (c *Controller) dumpAudio(pcm []byte) {
	dir := c.cfg.Debug.AudioDumpDir
	if dir == "" || len(pcm) == 0 {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.logWarn("audio dump directory", "error", err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("confab-%d.wav", time.Now().UnixMilli()))
	wav := audio.EncodeWAV(pcm, c.cfg.Audio.SampleRate, c.cfg.Audio.Channels)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		c.logWarn("audio dump write", "error", err)
		return
	}
	c.logDebug("captured audio dumped", "path", path, "bytes", len(wav))
}
