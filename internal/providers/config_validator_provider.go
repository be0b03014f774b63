package providers

import (
	"errors"
	"freedomwall/internal/structures"

	"github.com/gookit/validate"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return v.Errors
	}
	if cv.conf.Store.Backend == "sqlite" && cv.conf.Store.Path == "" {
		return errors.New("store.path is required for the sqlite backend")
	}
	if cv.conf.Persistence.FilePath != "" && cv.conf.Persistence.SaveInterval <= 0 {
		return errors.New("persistence.saveInterval must be positive when persistence.filePath is set")
	}
	return nil
}
