package submitter

import (
	"fmt"

	"dydx-broker/internal/entity"
)

var (
	globalRegistry = make(map[string]entity.TransactionSubmitter)
)

func Register(submitter entity.TransactionSubmitter) {
	globalRegistry[submitter.Name()] = submitter
}

func Get(name string) (entity.TransactionSubmitter, error) {
	submitter, ok := globalRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown submitter: %s", name)
	}
	return submitter, nil
}
