package service

import (
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/velmark/draftline/internal/models"
)

/*
 * Code provided here was mostly taken from github.com/lithammer/fuzzysearch/fuzzy
 * It was not public for external use, so I copied and customised it.
 */

var (
	normalizeTransformer transform.Transformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	transformer                                = transform.Chain(normalizeTransformer, unicodeFoldTransformer{})
)

type materialRank struct {
	material models.Material
	rank     int
}

func rankCmp(mr1, mr2 materialRank) int {
	return mr1.rank - mr2.rank
}

// filterRank returns materials with rank slice filtered by kind.
// The returned slice is sorted by rank ascending order.
func filterRank(lib []models.Material, filter models.MaterialFilter) []materialRank {
	out := make([]materialRank, 0, len(lib))

	for _, material := range lib {
		if filter.Kind != "" && material.Kind != filter.Kind {
			continue
		}
		// Add material with its Levenshtein distance
		out = append(out, materialRank{
			material: material,
			rank:     fuzzy.LevenshteinDistance(stringTransform(material.Name), stringTransform(filter.Name)),
		})
	}

	// sort slice
	slices.SortFunc(out, rankCmp)

	return out
}

func stringTransform(s string) (transformed string) {
	var err error
	transformed, _, err = transform.String(transformer, s)
	if err != nil {
		transformed = s
	}

	return
}

type unicodeFoldTransformer struct{ transform.NopResetter }

func (unicodeFoldTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	// Converting src to a string allocates.
	// In theory, it need not; see https://go.dev/issue/27148.
	// It is possible to write this loop using utf8.DecodeRune
	// and thereby avoid allocations, but it is noticeably slower.
	// So just let's wait for the compiler to get smarter.
	for _, r := range string(src) {
		if r == utf8.RuneError {
			// Go spec for ranging over a string says:
			// If the iteration encounters an invalid UTF-8 sequence,
			// the second value will be 0xFFFD, the Unicode replacement character,
			// and the next iteration will advance a single byte in the string.
			nSrc++
		} else {
			nSrc += utf8.RuneLen(r)
		}
		r = unicode.ToLower(r)
		x := utf8.RuneLen(r)
		if x > len(dst[nDst:]) {
			err = transform.ErrShortDst
			break
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
	}
	return nDst, nSrc, err
}
