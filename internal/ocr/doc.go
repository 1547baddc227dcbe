// Package ocr turns a camera frame into the raw text the plate scorer works on.
//
// Recognition is split in two layers:
//
//   - A Recognizer reads text fragments (word, confidence, bounding box) from
//     an image. TesseractRecognizer is the production implementation, backed
//     by Tesseract through gosseract/v2. Tests substitute a RecognizerFunc.
//   - An Extractor wraps a Recognizer with the plate-specific steps: crop to
//     the region of interest, skip frames with no text-like edges, preprocess
//     for contrast, drop fragments too short to be plate characters, and join
//     what remains with single spaces.
//
// # Prerequisites
//
// TesseractRecognizer requires cgo and a system Tesseract installation with
// language data for the configured language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng libtesseract-dev
//   - macOS: brew install tesseract
//
// Builds without cgo compile a stub whose constructor returns ErrUnavailable.
//
// # Error Handling
//
// Extract never fails: any recognition problem is logged at debug level and
// reported as empty text, which the pipeline treats as "nothing seen in this
// frame". Callers that want the error use Recognize directly.
package ocr
