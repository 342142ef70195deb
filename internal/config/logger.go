package config

import "go.uber.org/zap"

// NewLogger returns a development logger in dev and a JSON production
// logger everywhere else.
func NewLogger(c Config) (*zap.Logger, error) {
	if c.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
