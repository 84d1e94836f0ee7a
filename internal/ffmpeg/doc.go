// Package ffmpeg assembles per-session frame images into a video.
//
// ListFrames collects the frame images of a session directory, WriteManifest
// writes them as an ffmpeg concat list, and Build returns the argument
// vector that encodes the list at a fixed frame rate. Running the command is
// left to the invoke package.
package ffmpeg
