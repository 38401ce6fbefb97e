// Package exposition writes metric families in the Prometheus text format.
//
// Encode produces the 0.0.4 text format byte for byte the same way for the
// same input: HELP and TYPE lines per family, then one line per sample in
// the order given. Integral values are written with one decimal ("3.0") and
// histogram buckets get an "le" label rendered the same way.
//
// Samples whose labels cannot be written (an invalid label name, or a label
// value that is not UTF-8) are left out and reported as *EncodingError; the
// rest of the output is unaffected.
//
// Scrapers that ask for OpenMetrics or protobuf through the Accept header
// are served by EncodeFormat, which hands those formats to expfmt:
//
//	format, contentType := exposition.Negotiate(r.Header)
//	w.Header().Set("Content-Type", contentType)
//	warnings, err := exposition.EncodeFormat(w, families, format)
package exposition
