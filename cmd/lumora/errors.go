package main

import "github.com/jward/lumora/internal/errs"

// isIndexingError reports whether err originated from the indexing pipeline
// (parse or store failures during index/serve), mapped to exit code 2.
func isIndexingError(err error) bool {
	return errs.Is(err, errs.KindParse) || errs.Is(err, errs.KindStore)
}

// isIOError reports whether err is a filesystem/database access failure
// unrelated to the content being indexed, mapped to exit code 3.
func isIOError(err error) bool {
	return errs.Is(err, errs.KindIO)
}
