// Package builder packages a configured installer into a .intunewin
// container and writes it to the output directory.
package builder
