package constants

import (
	"github.com/go-playground/form"
	"github.com/go-playground/validator/v10"
)

// Validate is shared so struct metadata is cached once per process.
var Validate = validator.New(validator.WithRequiredStructEnabled())

// Decoder decodes url.Values into structs tagged with `form`.
var Decoder = form.NewDecoder()
