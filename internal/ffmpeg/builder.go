package ffmpeg

import "strconv"

// PixelFormat keeps the output playable by common decoders.
const PixelFormat = "yuv420p"

// ConcatJob describes one frames-to-video encode.
type ConcatJob struct {
	Binary    string // ffmpeg executable; "ffmpeg" when empty
	Manifest  string // concat list written by WriteManifest
	Output    string // .mp4 path
	FPS       int
	Codec     string
	ExtraArgs []string // appended before the output path
	Verbose   bool
}

// Build constructs the complete ffmpeg argument slice for job, including
// the binary as element 0.
//
//	ffmpeg -hide_banner -nostdin -y -loglevel error
//	       -f concat -safe 0 -r <fps> -i <manifest>
//	       -c:v <codec> -pix_fmt yuv420p -r <fps> <output>
func Build(job ConcatJob) []string {
	bin := job.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	fps := strconv.Itoa(job.FPS)

	args := make([]string, 0, 24+len(job.ExtraArgs))

	// --- Preamble ---
	args = append(args, bin, "-hide_banner", "-nostdin", "-y")

	// Loglevel: info when verbose, otherwise error.
	if job.Verbose {
		args = append(args, "-loglevel", "info")
	} else {
		args = append(args, "-loglevel", "error")
	}

	// --- Input: concat list, every entry shown for 1/fps ---
	args = append(args, "-f", "concat", "-safe", "0", "-r", fps, "-i", job.Manifest)

	// --- Video codec ---
	args = append(args, "-c:v", job.Codec, "-pix_fmt", PixelFormat, "-r", fps)

	args = append(args, job.ExtraArgs...)
	return append(args, job.Output)
}
