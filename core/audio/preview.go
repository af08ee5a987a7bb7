package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// PreviewClipper cuts the truncated preview source out of an uploaded
// track using ffmpeg. The preview length matches the playback cap so the
// clip never ends before the vote window does.
type PreviewClipper struct {
	ffmpegPath string
	seconds    int
}

// NewPreviewClipper creates a clipper. ffmpegPath may be a bare binary
// name resolved through PATH.
func NewPreviewClipper(ffmpegPath string, seconds int) *PreviewClipper {
	return &PreviewClipper{ffmpegPath: ffmpegPath, seconds: seconds}
}

// Clip writes the first N seconds of inputFile to outputFile without
// re-encoding.
func (p *PreviewClipper) Clip(ctx context.Context, inputFile, outputFile string) error {
	args := []string{
		"-y",
		"-i", inputFile,
		"-t", strconv.Itoa(p.seconds),
		"-c", "copy",
		outputFile,
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg preview clip failed for %s: %w\nFFmpeg Error: %s", inputFile, err, stderr.String())
	}
	return nil
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration uses ffprobe to get the duration of an audio file in seconds.
func (p *PreviewClipper) Duration(ctx context.Context, inputFile string) (float32, error) {
	ffprobePath := strings.Replace(p.ffmpegPath, "ffmpeg", "ffprobe", 1)

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probeData.Format.Duration, err)
	}
	return float32(duration), nil
}
