package errors

import (
	"errors"
	"fmt"
)

// ErrorDump is the log-friendly shape of an error chain.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`
}

// Dump walks err depth-first, following both single and joined (multi) unwraps.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	walkChain(err, &d.Chain)
	return d
}

const maxChainDepth = 32

func walkChain(err error, chain *[]string) {
	if err == nil || len(*chain) >= maxChainDepth {
		return
	}
	*chain = append(*chain, fmt.Sprintf("%T: %v", err, err))
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			walkChain(inner, chain)
		}
	default:
		walkChain(errors.Unwrap(err), chain)
	}
}
