package models

import (
	"context"
	"strings"
)

const dummyPrefix = "Dummy response:"

// DummyLLM answers offline by echoing the last line of the prompt, so the
// pipeline can run end to end without credentials.
type DummyLLM struct {
	Prefix string
}

// NewDummyLLM returns an offline agent; an empty prefix means "Dummy response:".
func NewDummyLLM(prefix string) *DummyLLM {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = dummyPrefix
	}
	return &DummyLLM{Prefix: prefix}
}

func (d *DummyLLM) Name() string { return "dummy" }

func (d *DummyLLM) Generate(_ context.Context, req Request) (string, error) {
	prompt := strings.TrimRight(req.Prompt(), " \t\r\n")
	if prompt == "" {
		return d.Prefix + " <empty prompt>", nil
	}
	last := prompt[strings.LastIndexByte(prompt, '\n')+1:]
	return d.Prefix + " " + strings.TrimSpace(last), nil
}

var _ Agent = (*DummyLLM)(nil)
