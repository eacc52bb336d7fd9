// Package bundle defines the Product Bundle contract: the schema-governed
// structured result of one identification run. It owns strict decoding of
// model output, validation of the contract, attribute normalization, and the
// JSON-schema description handed to the model as its output format.
package bundle
