package install

import (
	"fmt"
	"time"
)

// Progress reports installation progress.
type Progress struct {
	// Phase is one of "version", "download", "extract", "install", "done",
	// "error".
	Phase string

	// Message is a human-readable status line.
	Message string

	// BytesDownloaded and BytesTotal are set during the download phase.
	// BytesTotal is zero when the server did not report a size.
	BytesDownloaded int64
	BytesTotal      int64

	// Error is set in the "error" phase.
	Error error
}

// ProgressFunc is called with progress updates during installation. It runs
// on the installing goroutine; implementations must not block.
type ProgressFunc func(Progress)

// FormatBytes formats bytes as a human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration as a human-readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// DefaultProgressFunc prints progress to stdout.
func DefaultProgressFunc(p Progress) {
	switch p.Phase {
	case "download":
		pct := float64(0)
		if p.BytesTotal > 0 {
			pct = float64(p.BytesDownloaded) / float64(p.BytesTotal) * 100
		}
		fmt.Printf("\r[Download] %s / %s (%.1f%%)",
			FormatBytes(p.BytesDownloaded), FormatBytes(p.BytesTotal), pct)
	case "error":
		fmt.Printf("\n[Error] %v\n", p.Error)
	case "done":
		fmt.Printf("\n[Done] %s\n", p.Message)
	default:
		fmt.Printf("\n[%s] %s", p.Phase, p.Message)
	}
}
