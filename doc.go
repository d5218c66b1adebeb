// Package searchflow coordinates interactive queries against two record
// sources, characters and planets, on top of channel-based datastreams.
//
// A Session turns noisy keystrokes into a debounced, de-duplicated and
// cancelling search stream, loads both sources at once and joins their
// results, and folds the busy signal of each source into one flag. Everything
// the session keeps running in the background is released by Teardown.
//
// Below is an example of a consumer wiring a Session to in-memory sources:
//
//	package main
//
//	import (
//		"context"
//		"log/slog"
//
//		"github.com/elastiflow/searchflow"
//		"github.com/elastiflow/searchflow/gateway"
//	)
//
//	func main() {
//		fixtures := gateway.DefaultFixtures()
//		characters := gateway.NewMemory(gateway.Character, fixtures.Characters)
//		planets := gateway.NewMemory(gateway.Planet, fixtures.Planets)
//
//		ctx := context.Background()
//		session := searchflow.New(searchflow.NewProps[gateway.Record](characters, planets)).Open(ctx)
//		defer session.Teardown()
//
//		errs := make(chan error, 1)
//		results := session.SearchResults(ctx, errs)
//		for _, term := range []string{"s", "sk", "sky"} { // one call per keystroke
//			session.OnInputChanged(term)
//		}
//		slog.Info("search results", slog.Any("records", <-results))
//
//		load := <-session.TriggerCombinedLoad(ctx)
//		if load.Err != nil {
//			slog.Error("combined load failed", slog.Any("error", load.Err))
//			return
//		}
//		slog.Info("combined load", slog.Int("records", len(load.Records)))
//	}
package searchflow
