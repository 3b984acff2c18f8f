package videocall

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func newSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.WithStack(err)
	}
	return id.String(), nil
}
