// Package modem defines the parser capability contract and the normalized
// data model shared by every modem decoder.
//
// A parser is the unit of device support: it declares which pages it needs
// fetched, recognizes its target device from fetched content, decodes the
// device's channel tables into the common schema, and validates the decoded
// values against a numeric envelope. Parsers are registered through the
// explicit manifest in internal/parsers and ordered by the registry; nothing
// in this package performs I/O.
package modem
