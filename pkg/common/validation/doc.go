// Package validation provides the configuration checks shared by gostream
// constructors.
//
// Every check returns a *errors.ValidationError carrying the module and
// field it was called with, so a rejected Config names what to change:
//
//	err := validation.First(
//		validation.NotNil("distributed", "redis", cfg.Redis),
//		validation.NotEmpty("distributed", "key", cfg.Key),
//		validation.Positive("distributed", "rate", cfg.Rate),
//	)
package validation
