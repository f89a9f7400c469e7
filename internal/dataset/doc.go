// Package dataset models processed survey data as an immutable column-
// oriented table and loads it from CSV or Excel files. Cells are labels
// with an explicit missing flag; downstream analysis never sees raw
// placeholder strings like "NA".
package dataset
