package app

import (
	"encoding/json"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
)

// Genesis is the initial application state, designed to be overlayed
// with the host platform's genesis document.
type Genesis struct {
	ChainID    string       `json:"chain_id"`
	AppOptions veil.Options `json:"app_options"`
}

// ParseGenesis loads a Genesis struct from raw JSON content.
func ParseGenesis(raw []byte) (Genesis, error) {
	var gen Genesis
	if err := json.Unmarshal(raw, &gen); err != nil {
		return gen, errors.Wrap(err, "cannot unmarshal genesis")
	}
	return gen, nil
}

// ChainInitializers lets you initialize many extensions with one
// Initializer. Initializers are run in given order and the first
// failure aborts the whole initialization.
func ChainInitializers(inits ...veil.Initializer) veil.Initializer {
	return chainInitializer{inits: inits}
}

type chainInitializer struct {
	inits []veil.Initializer
}

var _ veil.Initializer = chainInitializer{}

func (c chainInitializer) FromGenesis(opts veil.Options, db veil.KVStore) error {
	for _, i := range c.inits {
		if i == nil {
			continue
		}
		if err := i.FromGenesis(opts, db); err != nil {
			return err
		}
	}
	return nil
}
