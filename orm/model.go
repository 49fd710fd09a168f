package orm

import (
	"github.com/veil-one/veil"
)

// Model is implemented by any entity that can be stored using ModelBucket.
type Model interface {
	veil.Persistent
	Validate() error
}
