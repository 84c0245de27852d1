// Package blockblob uploads a payload to a delegated storage URI as a
// sequence of fixed-size blocks followed by a block list commit.
package blockblob
