package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/syncpair/syncpair/internal/config"
)

// loadPairs reads the pairs file named by the --pairs flag or SYNCPAIR_PAIRS.
func loadPairs() (*config.Config, error) {
	return config.Load(viper.GetString("pairs"))
}

// selectPairs picks the named pairs from the file, or all of them when no
// names are given. Names match either the declared name or the display form.
func selectPairs(cfg *config.Config, names []string) ([]*config.Pair, error) {
	if len(names) == 0 {
		out := make([]*config.Pair, len(cfg.Pairs))
		for i := range cfg.Pairs {
			out[i] = &cfg.Pairs[i]
		}
		return out, nil
	}

	var out []*config.Pair
	for _, name := range names {
		found := false
		for i := range cfg.Pairs {
			pair := &cfg.Pairs[i]
			if pair.Name == name || pair.DisplayName() == name {
				out = append(out, pair)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("pair %q not found in pairs file", name)
		}
	}
	return out, nil
}
