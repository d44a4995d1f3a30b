// Package utils provides common utility functions for the overlay engine.
// It includes loose value conversion for the schema-less row documents produced by
// the spreadsheet import, plus the 32-bit clamp applied to every computed profit.
package utils
