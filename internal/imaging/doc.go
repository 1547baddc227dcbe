// Package imaging provides the image operations the plate pipeline performs
// on camera frames before text recognition.
//
// It covers three concerns:
//   - Loading frames from disk, with a concurrency-safe ImageCache, and
//     listing the frame files of a playback directory in order.
//   - Cropping a frame to a normalized region of interest (Region), the band
//     of the picture where a hand-held shot usually shows the plate.
//   - Preparing the crop for OCR: grayscale, contrast, sharpening and
//     automatic inversion of light-on-dark plates (Preprocess), plus a cheap
//     edge-density measure used to skip frames with no text-like content.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner. A Region is
// expressed in fractions of the frame size, also from the top-left corner, so
// the same Region applies to any frame resolution.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are stateless and
// never modify their input image.
package imaging
