// Package importers decodes interchange files into canonical records.
//
// # Architecture
//
// Every format produces the same stream of records:
//
//	File → DetectFormat → Decoder → Record → validation → services.ImportService
//
// The JSON decoder walks the document token by token. The CSV decoders sit on
// Tokenizer, a small state machine that handles quoted fields spanning lines,
// and map columns through a columnMapping:
//
//   - generic CSV: the engine's own column layout
//   - Goodreads CSV: the "Export Library" file, shelves mapped to statuses
//
// Record-level problems (a bad date, a missing title) are returned as errors
// of kind errs.KindValidation with the source line attached, and decoding can
// continue. Anything else ends the stream.
//
// # Example Usage
//
//	format, err := importers.DetectFormat(name, head)
//	dec, err := importers.NewDecoder(file, format)
//	for {
//		rec, err := dec.Next()
//		if err == io.EOF {
//			break
//		}
//		// ...
//	}
package importers
