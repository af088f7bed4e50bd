package main

import (
	"github.com/prospect-labs/prospector/config"
	"github.com/prospect-labs/prospector/internal/llm"
)

func newLLMProvider(cfg config.LLMConfig) llm.Provider {
	return llm.NewOpenAI(cfg)
}
