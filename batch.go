package textmate

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// TokenizeLinesContext is like [Grammar.TokenizeLines] but stops between
// lines once ctx is done, returning ctx's error.
func (g *Grammar) TokenizeLinesContext(ctx context.Context, text string) ([][]Token, error) {
	lines := SplitLines(text)
	out := make([][]Token, len(lines))
	state := g.initial
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := g.tokenizeLine(line, state)
		out[i], state = res.Tokens, res.State
	}
	return out, nil
}

// TokenizeDocuments tokenizes independent documents in parallel, at most
// workers at a time; workers <= 0 means one per document. The result holds
// the lines of docs[i] at index i. The first error, including cancellation
// of ctx, stops the remaining documents.
func (g *Grammar) TokenizeDocuments(ctx context.Context, docs []string, workers int) ([][][]Token, error) {
	out := make([][][]Token, len(docs))
	eg, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}
	for i, doc := range docs {
		eg.Go(func() error {
			lines, err := g.TokenizeLinesContext(ctx, doc)
			if err != nil {
				return err
			}
			out[i] = lines
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
