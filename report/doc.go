// Package report interprets the text a classification provider returns.
//
// liblayout_view answers with a JSON array of per-sheet records (visible
// sheets only) describing the used range, how dense it is and, when the
// classifier ran, the sheet type it settled on. Decode parses that array;
// Render prints it as a table, indented JSON or markdown. Schema describes a
// record as JSON Schema for consumers of the raw output.
package report
