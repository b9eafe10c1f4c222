// Package imaging loads camera frames from disk and prepares them for the
// recognition and tracking capabilities.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with the origin at the top-left corner. Regions
// exchanged with the rest of the system are normalized geometry.Rect values in
// [0,1]; CropNormalized and DominantColors convert them to pixel rectangles
// against the frame bounds.
//
// # Frame Sources
//
// A recorded scan is a directory of still images whose lexical order is the
// capture order. FrameFiles lists them and Replay delivers them with synthetic
// timestamps at a fixed interval, standing in for a live camera.
//
// # Thread Safety
//
// FrameCache is safe for concurrent use. Every other function is stateless and
// never mutates its input image.
package imaging
