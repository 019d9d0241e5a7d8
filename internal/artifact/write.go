package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteJSON writes v as sorted-key, 2-space-indented JSON with a trailing
// newline, via write-to-temp-then-rename so readers never observe a
// partial artifact. Parent directories are created as needed.
func WriteJSON(path string, v any) error {
	b, err := MarshalIndentCanonical(v)
	if err != nil {
		return err
	}
	return writeAtomic(path, append(b, '\n'))
}

// WriteText writes text atomically, ensuring a trailing newline on
// non-empty payloads.
func WriteText(path, text string) error {
	payload := text
	if payload != "" && payload[len(payload)-1] != '\n' {
		payload += "\n"
	}
	return writeAtomic(path, []byte(payload))
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifact: mkdir for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("artifact: rename %s: %w", path, err)
	}
	return nil
}

// UTCTimestamp returns the generation timestamp recorded in artifacts.
func UTCTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
