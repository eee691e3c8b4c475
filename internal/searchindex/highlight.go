package searchindex

import (
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/highlight"
	htmlFormatter "github.com/blevesearch/bleve/v2/search/highlight/format/html"
	simpleFragmenter "github.com/blevesearch/bleve/v2/search/highlight/fragmenter/simple"
	simpleHighlighter "github.com/blevesearch/bleve/v2/search/highlight/highlighter/simple"
)

// EmHighlighterName identifies the highlighter that wraps matched terms in
// <em> tags, which is what the result cards render.
const EmHighlighterName = "em"

// fragmentSize bounds each highlighted snippet in characters.
const fragmentSize = 200

func init() {
	_ = registry.RegisterHighlighter(EmHighlighterName, emHighlighterConstructor)
}

func emHighlighterConstructor(config map[string]interface{}, cache *registry.Cache) (highlight.Highlighter, error) {
	fragmenter := simpleFragmenter.NewFragmenter(fragmentSize)
	formatter := htmlFormatter.NewFragmentFormatter("<em>", "</em>")
	return simpleHighlighter.NewHighlighter(fragmenter, formatter, simpleHighlighter.DefaultSeparator), nil
}
