package utils

import (
	"strings"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/option"
	"github.com/tieubaoca/tables-retriever/config"
)

// InitLogger configures the global structured logger.
func InitLogger(cfg config.LogConfig) error {
	opt := option.DefaultLogOption()
	if cfg.Level != "" {
		opt.Level = strings.ToUpper(cfg.Level)
	}
	if cfg.Format != "" {
		opt.Format = cfg.Format
	}
	if cfg.Engine != "" {
		opt.Engine = cfg.Engine
	}
	// stdout carries answers for the CLI
	opt.OutputPaths = []string{"stderr"}
	if err := opt.Validate(); err != nil {
		return err
	}

	l, err := logger.New(opt)
	if err != nil {
		return err
	}
	logger.SetGlobal(l)
	return nil
}
