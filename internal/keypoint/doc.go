// Package keypoint reads and rewrites per-frame pose JSON.
//
// The keypoint JSON is a list of frames, each {"frame_id": n, "instances":
// [{"bbox": [x1,y1,x2,y2], "keypoints": [[x,y,z], ...], ...}]}. Merge
// attaches a "track_id" to every instance by matching its box against a
// MOT-format tracker file; WriteSkeleton turns tracked frames into the
// plain-text skeleton format consumed by graph-convolution action models.
package keypoint
