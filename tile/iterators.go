package tile

import (
	"errors"
	"iter"
)

var errVisitCancelled = errors.New("visit cancelled")

// IterTiles returns an iterator over all tiles in the tileset.
// It yields tile indices and their data. Iteration panics on unrecoverable errors.
func IterTiles(r Visitor) iter.Seq2[Index, []byte] {
	return func(yield func(Index, []byte) bool) {
		err := r.VisitTiles(func(index Index, tileData []byte) error {
			if !yield(index, tileData) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}

// Indices collects the indices of all tiles in the tileset, stopping at the
// first error.
func Indices(r Visitor) ([]Index, error) {
	var result []Index
	err := r.VisitTiles(func(index Index, _ []byte) error {
		result = append(result, index)
		return nil
	})
	return result, err
}
