// Package codec serializes record payloads for journal entries.
//
// A journal line frames payloads with TAB separators and terminates them
// with a newline, so every codec must produce single-line output. Both
// codecs here are JSON based and never emit raw control characters:
//
//   - JSON: encoding/json compact output (the default payload format)
//   - Canonical: RFC 8785 style canonical JSON (sorted keys by UTF-16 code
//     units, NFC-normalized strings, no HTML escaping)
//
// Both codecs decode with encoding/json, so a journal written with one can be
// replayed with the other.
package codec
