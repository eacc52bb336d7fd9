// Package storage hosts uploaded job files and exposes them under public
// URLs so visual-search tools can fetch them. Callers depend on the narrow
// Store contract only; the filesystem implementation keeps objects under the
// configured files directory, grouped by scope.
package storage
